package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/creatorpilot/creditledger/internal/auth"
	"github.com/creatorpilot/creditledger/internal/config"
	"github.com/creatorpilot/creditledger/internal/db"
	"github.com/creatorpilot/creditledger/internal/ledger"
	"github.com/creatorpilot/creditledger/internal/models"
	"github.com/creatorpilot/creditledger/internal/subscription"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{Secret: "handler-test-secret", Expiry: time.Hour}

// newTestRouter wires the full front API against a database opened through
// db.Open, so handler tests see the same driver behavior as production.
func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	subs := subscription.NewGormLookup(conn)
	svc := ledger.NewService(conn, subs, nil)
	authHandler := NewAuthHandler(conn, testJWT)
	creditHandler := NewCreditHandler(svc, subs)

	router := gin.New()
	v0 := router.Group("/v0")
	v0.POST("/auth/register", authHandler.Register)
	v0.POST("/auth/login", authHandler.Login)
	credits := v0.Group("/credits", auth.Middleware(testJWT))
	credits.GET("", creditHandler.Balance)
	credits.POST("/deduct", creditHandler.Deduct)
	credits.POST("/purchase", creditHandler.Purchase)
	credits.GET("/transactions", creditHandler.Transactions)
	return router, conn
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCredits_RequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/v0/credits", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCredits_BalanceAndDeductFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	token, errToken := auth.IssueToken(testJWT, 77)
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}

	rec := doJSON(t, router, http.MethodGet, "/v0/credits", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var balanceResp struct {
		Balance ledger.Balance `json:"balance"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &balanceResp); errDecode != nil {
		t.Fatalf("decode balance: %v", errDecode)
	}
	if balanceResp.Balance.Remaining != models.FreeLifetimeCredits {
		t.Fatalf("expected %d welcome credits, got %d", models.FreeLifetimeCredits, balanceResp.Balance.Remaining)
	}

	// Spend the lifetime grant plus the bonus credit.
	for i := 0; i < models.FreeLifetimeCredits+1; i++ {
		rec = doJSON(t, router, http.MethodPost, "/v0/credits/deduct", token, gin.H{"description": "caption"})
		if rec.Code != http.StatusOK {
			t.Fatalf("deduct %d: expected 200, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	// Everything spent: 402 with the reset date.
	rec = doJSON(t, router, http.MethodPost, "/v0/credits/deduct", token, gin.H{"description": "caption"})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	var exhaustedResp struct {
		Error     string    `json:"error"`
		Plan      string    `json:"plan"`
		NextReset time.Time `json:"next_reset"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &exhaustedResp); errDecode != nil {
		t.Fatalf("decode exhausted: %v", errDecode)
	}
	if exhaustedResp.Plan != string(models.PlanFree) {
		t.Fatalf("expected free plan in error, got %q", exhaustedResp.Plan)
	}
	if exhaustedResp.NextReset.IsZero() {
		t.Fatalf("expected next_reset to be populated")
	}

	// Purchasing credits unblocks deduction.
	rec = doJSON(t, router, http.MethodPost, "/v0/credits/purchase", token, gin.H{"amount": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("purchase: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/v0/credits/deduct", token, gin.H{"description": "caption"})
	if rec.Code != http.StatusOK {
		t.Fatalf("deduct after purchase: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v0/credits/transactions?page=1&page_size=10", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions: expected 200, got %d", rec.Code)
	}
	var txResp struct {
		Total int64 `json:"total"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &txResp); errDecode != nil {
		t.Fatalf("decode transactions: %v", errDecode)
	}
	// welcome + 4 generations (3 credits + bonus) + purchase + 1 generation.
	if txResp.Total != 7 {
		t.Fatalf("expected 7 transactions, got %d", txResp.Total)
	}
}

func TestCredits_PurchaseRejectsNonPositiveAmount(t *testing.T) {
	router, _ := newTestRouter(t)

	token, errToken := auth.IssueToken(testJWT, 78)
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}

	rec := doJSON(t, router, http.MethodPost, "/v0/credits/purchase", token, gin.H{"amount": -3})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
