package models

import "time"

// SubscriptionStatus mirrors the state reported by the external billing system.
type SubscriptionStatus string

// SubscriptionStatus constants define the externally-reported states the
// ledger cares about.
const (
	// SubscriptionStatusActive marks a subscription in good standing.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusCanceled marks a subscription that has ended.
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	// SubscriptionStatusPastDue marks a subscription with a failed renewal.
	SubscriptionStatusPastDue SubscriptionStatus = "past_due"
)

// Subscription is the externally-owned billing record for a user. The ledger
// only reads it: the payment integration writes these rows, and the cycle
// manager consults CurrentPeriodEnd to decide reset boundaries.
type Subscription struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64             `gorm:"not null;uniqueIndex"`      // Owning user ID.
	Plan   Plan               `gorm:"type:varchar(32);not null"` // Subscribed tier.
	Status SubscriptionStatus `gorm:"type:varchar(32);not null"` // Reported lifecycle state.

	CurrentPeriodEnd *time.Time // End of the current paid period, when known.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
