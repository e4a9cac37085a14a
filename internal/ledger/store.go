package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creatorpilot/creditledger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountStore performs point reads and conditional writes of CreditAccount
// rows. It is the only path through which account rows are mutated.
type AccountStore struct {
	db *gorm.DB
}

// NewAccountStore constructs an AccountStore backed by GORM.
func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// ExpectedState carries the field values an optimistic write is conditioned
// on: the three fields the deduction engine mutates.
type ExpectedState struct {
	UsedThisMonth    int
	PurchasedCredits int
	BonusCreditUsed  bool
}

// EnsureAccount inserts the default account row for a user if none exists.
// Safe under concurrent first access: the unique index on user_id plus ON
// CONFLICT DO NOTHING guarantees a single row. Reports whether this call
// created the row, so the caller can write the welcome log entry exactly once.
func (s *AccountStore) EnsureAccount(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("ledger: account store not initialized")
	}
	if userID == 0 {
		return false, fmt.Errorf("ledger: missing user id")
	}
	row := models.CreditAccount{
		UserID:            userID,
		Plan:              models.PlanFree,
		MonthlyAllocation: 0,
		UsedThisMonth:     0,
		PurchasedCredits:  models.FreeLifetimeCredits,
		BonusCreditUsed:   false,
		BillingCycleStart: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("ledger: ensure account: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Read loads the account row for a user.
func (s *AccountStore) Read(ctx context.Context, userID uint64) (*models.CreditAccount, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger: account store not initialized")
	}

	var account models.CreditAccount
	errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: read account: %w", errFind)
	}
	return &account, nil
}

// ConditionalUpdate applies the updates only if the row still matches the
// expected state, and reports whether a row changed. A false return means a
// concurrent writer committed first and the caller must re-read.
func (s *AccountStore) ConditionalUpdate(ctx context.Context, userID uint64, expected ExpectedState, updates map[string]any) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("ledger: account store not initialized")
	}
	if len(updates) == 0 {
		return false, fmt.Errorf("ledger: empty update set")
	}

	res := s.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ? AND used_this_month = ? AND purchased_credits = ? AND bonus_credit_used = ?",
			userID, expected.UsedThisMonth, expected.PurchasedCredits, expected.BonusCreditUsed).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("ledger: conditional update: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
