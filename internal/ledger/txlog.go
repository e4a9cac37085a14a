package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/creatorpilot/creditledger/internal/db"
	"github.com/creatorpilot/creditledger/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransactionLog appends immutable audit records for balance-affecting
// events. The log is best-effort observability, not a source of truth: an
// append failure never rolls back the balance mutation that preceded it, it
// only reaches the operational log.
type TransactionLog struct {
	db *gorm.DB
}

// NewTransactionLog constructs a TransactionLog backed by GORM.
func NewTransactionLog(db *gorm.DB) *TransactionLog {
	return &TransactionLog{db: db}
}

// entryMetadata is the detail blob stored alongside each entry.
type entryMetadata struct {
	Source     string    `json:"source,omitempty"`
	CycleStart time.Time `json:"cycle_start,omitempty"`
}

// Append writes a log entry. Failures are surfaced operationally and
// swallowed, so callers never treat the audit trail as a write dependency.
func (l *TransactionLog) Append(ctx context.Context, entry *models.CreditTransaction) {
	if l == nil || l.db == nil || entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if errCreate := l.db.WithContext(ctx).Create(entry).Error; errCreate != nil {
		log.WithError(errCreate).
			WithField("user_id", entry.UserID).
			WithField("type", entry.Type).
			Warn("credit ledger: transaction log append failed")
	}
}

// metadataJSON marshals the entry detail blob, returning nil on failure.
func metadataJSON(source string, cycleStart time.Time) datatypes.JSON {
	payload, errMarshal := json.Marshal(entryMetadata{Source: source, CycleStart: cycleStart})
	if errMarshal != nil {
		return nil
	}
	return datatypes.JSON(payload)
}

// List returns a page of a user's transaction history, newest first, with an
// optional case-insensitive description filter.
func (l *TransactionLog) List(ctx context.Context, userID uint64, page, pageSize int, search string) ([]models.CreditTransaction, int64, error) {
	if l == nil || l.db == nil {
		return nil, 0, fmt.Errorf("ledger: transaction log not initialized")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	q := l.db.WithContext(ctx).Model(&models.CreditTransaction{}).Where("user_id = ?", userID)
	if trimmed := strings.TrimSpace(search); trimmed != "" {
		pattern := db.NormalizeLikePattern(l.db, "%"+trimmed+"%")
		q = q.Where(db.CaseInsensitiveLikeExpr(l.db, "description"), pattern)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("ledger: count transactions: %w", errCount)
	}

	var rows []models.CreditTransaction
	if errFind := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("ledger: list transactions: %w", errFind)
	}
	return rows, total, nil
}
