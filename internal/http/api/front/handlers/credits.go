package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/creatorpilot/creditledger/internal/auth"
	"github.com/creatorpilot/creditledger/internal/ledger"
	"github.com/creatorpilot/creditledger/internal/subscription"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// CreditHandler serves balance, deduction, and purchase endpoints.
type CreditHandler struct {
	svc  *ledger.Service
	subs subscription.Lookup
}

// NewCreditHandler constructs a CreditHandler.
func NewCreditHandler(svc *ledger.Service, subs subscription.Lookup) *CreditHandler {
	return &CreditHandler{svc: svc, subs: subs}
}

// Balance returns the current credit balance and warning tier.
func (h *CreditHandler) Balance(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	balance, errBalance := h.svc.GetBalance(c.Request.Context(), userID)
	if errBalance != nil {
		log.WithError(errBalance).WithField("user_id", userID).Error("get balance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get balance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// deductRequest defines the request body for deductions.
type deductRequest struct {
	Description string `json:"description"`
}

// Deduct spends one generation credit.
func (h *CreditHandler) Deduct(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body deductRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	balance, errDeduct := h.svc.Deduct(c.Request.Context(), userID, body.Description)
	if errDeduct != nil {
		var exhausted *ledger.CreditExhaustedError
		if errors.As(errDeduct, &exhausted) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":      "credits exhausted",
				"plan":       exhausted.Plan,
				"next_reset": h.displayNextReset(c, userID, exhausted.NextReset),
			})
			return
		}
		var contention *ledger.HighContentionError
		if errors.As(errDeduct, &contention) {
			log.WithError(errDeduct).WithField("user_id", userID).Warn("deduct contention bound exceeded")
			c.JSON(http.StatusConflict, gin.H{"error": "too many concurrent requests, try again"})
			return
		}
		log.WithError(errDeduct).WithField("user_id", userID).Error("deduct failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deduct failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// purchaseRequest defines the request body for credit purchases.
type purchaseRequest struct {
	Amount int `json:"amount"`
}

// Purchase adds purchased credits to the account. Payment verification is the
// checkout integration's concern; this endpoint trusts its caller.
func (h *CreditHandler) Purchase(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body purchaseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	balance, errPurchase := h.svc.CreditPurchase(c.Request.Context(), userID, body.Amount)
	if errPurchase != nil {
		var contention *ledger.HighContentionError
		if errors.As(errPurchase, &contention) {
			c.JSON(http.StatusConflict, gin.H{"error": "too many concurrent requests, try again"})
			return
		}
		log.WithError(errPurchase).WithField("user_id", userID).Error("credit purchase failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "purchase failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// Transactions returns a page of the user's credit history.
func (h *CreditHandler) Transactions(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	search := c.Query("search")

	rows, total, errList := h.svc.Transactions(c.Request.Context(), userID, page, pageSize, search)
	if errList != nil {
		log.WithError(errList).WithField("user_id", userID).Error("list transactions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list transactions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":            row.ID,
			"type":          row.Type,
			"amount":        row.Amount,
			"balance_after": row.BalanceAfter,
			"description":   row.Description,
			"created_at":    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out, "total": total, "page": page})
}

// displayNextReset prefers the external subscription's period end over the
// rolling-window estimate when it is known and later.
func (h *CreditHandler) displayNextReset(c *gin.Context, userID uint64, fallback time.Time) time.Time {
	if h.subs == nil {
		return fallback
	}
	record, errLookup := h.subs.Lookup(c.Request.Context(), userID)
	if errLookup != nil || !record.Active() || record.CurrentPeriodEnd == nil {
		return fallback
	}
	if record.CurrentPeriodEnd.After(fallback) {
		return *record.CurrentPeriodEnd
	}
	return fallback
}
