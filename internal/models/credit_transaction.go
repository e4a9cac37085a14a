package models

import (
	"time"

	"gorm.io/datatypes"
)

// TransactionType classifies a balance-affecting event.
type TransactionType string

// TransactionType constants define the recorded event kinds.
const (
	// TransactionTypeWelcome records the lifetime grant on account creation.
	TransactionTypeWelcome TransactionType = "welcome"
	// TransactionTypeMonthlyReset records a billing-cycle reset.
	TransactionTypeMonthlyReset TransactionType = "monthly_reset"
	// TransactionTypeGeneration records a credit spent on a generation.
	TransactionTypeGeneration TransactionType = "generation"
	// TransactionTypePurchase records purchased credits being added.
	TransactionTypePurchase TransactionType = "purchase"
)

// CreditTransaction is an append-only audit record of a balance-affecting
// event. Rows are immutable once written and are never deleted by the ledger.
type CreditTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64          `gorm:"not null;index"`             // Owning user ID.
	Type   TransactionType `gorm:"type:varchar(32);not null"`  // Event kind.
	Amount int             `gorm:"not null"`                   // Signed credit delta; 0 for bonus grants.

	BalanceAfter int    `gorm:"not null"`  // Derived remaining balance immediately after the event.
	Description  string `gorm:"type:text"` // Human-readable context for support.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Event detail blob (deduction source, cycle start).

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Event timestamp.
}
