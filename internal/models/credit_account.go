package models

import "time"

// Plan identifies a subscription tier.
type Plan string

// Plan constants define the supported subscription tiers.
const (
	// PlanFree is the default tier with no monthly allocation.
	PlanFree Plan = "free"
	// PlanPro grants 30 credits per billing cycle.
	PlanPro Plan = "pro"
	// PlanCreator grants 100 credits per billing cycle.
	PlanCreator Plan = "creator"
)

// AllocationForPlan returns the per-cycle credit allocation for a plan.
// Unknown plans fall back to the free allocation.
func AllocationForPlan(plan Plan) int {
	switch plan {
	case PlanPro:
		return 30
	case PlanCreator:
		return 100
	default:
		return 0
	}
}

// FreeLifetimeCredits is the non-expiring grant every new account starts with.
const FreeLifetimeCredits = 3

// CreditAccount is the per-user ledger row; the single source of truth for
// generation-credit balances.
type CreditAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user ID.

	Plan              Plan `gorm:"type:varchar(32);not null;default:'free'"` // Subscription tier.
	MonthlyAllocation int  `gorm:"not null;default:0"`                       // Credits granted per cycle.
	UsedThisMonth     int  `gorm:"not null;default:0"`                       // Allocation credits consumed this cycle.
	PurchasedCredits  int  `gorm:"not null;default:0"`                       // Non-expiring purchased credits.
	BonusCreditUsed   bool `gorm:"not null;default:false"`                   // Whether the grace credit was claimed this cycle.

	BillingCycleStart time.Time `gorm:"not null"` // Start of the current accounting period.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last mutation timestamp.
}

// MonthlyRemaining returns the unconsumed part of the monthly allocation.
func (a *CreditAccount) MonthlyRemaining() int {
	left := a.MonthlyAllocation - a.UsedThisMonth
	if left < 0 {
		return 0
	}
	return left
}

// Remaining returns the derived total balance: unconsumed allocation plus
// purchased credits. Never stored.
func (a *CreditAccount) Remaining() int {
	return a.MonthlyRemaining() + a.PurchasedCredits
}
