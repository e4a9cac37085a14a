// Package subscription reads the externally-owned billing records the cycle
// manager consults for reset boundaries. The payment integration owns these
// rows; the ledger never writes them.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creatorpilot/creditledger/internal/models"
	"gorm.io/gorm"
)

// Record is the slice of a subscription the ledger cares about.
type Record struct {
	Plan             models.Plan
	Status           models.SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

// Active reports whether the subscription should drive cycle boundaries.
func (r *Record) Active() bool {
	return r != nil && r.Status == models.SubscriptionStatusActive
}

// Lookup resolves the subscription record for a user. A nil record with a nil
// error means the user has no subscription row.
type Lookup interface {
	Lookup(ctx context.Context, userID uint64) (*Record, error)
}

// GormLookup reads subscription rows through GORM.
type GormLookup struct {
	db *gorm.DB
}

// NewGormLookup constructs a GormLookup.
func NewGormLookup(db *gorm.DB) *GormLookup {
	return &GormLookup{db: db}
}

// Lookup implements Lookup.
func (l *GormLookup) Lookup(ctx context.Context, userID uint64) (*Record, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("subscription: lookup not initialized")
	}

	var row models.Subscription
	errFind := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("subscription: lookup: %w", errFind)
	}
	return &Record{
		Plan:             row.Plan,
		Status:           row.Status,
		CurrentPeriodEnd: row.CurrentPeriodEnd,
	}, nil
}
