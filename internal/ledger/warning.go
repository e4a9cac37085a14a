package ledger

import "github.com/creatorpilot/creditledger/internal/models"

// WarningLevel is the UI nudge tier derived from account state.
type WarningLevel string

// WarningLevel constants, in order of severity.
const (
	// WarningNone means no nudge is warranted.
	WarningNone WarningLevel = ""
	// WarningLow means the balance is running down (>=75% allocation used,
	// or <=25% of purchase-only credits remaining).
	WarningLow WarningLevel = "low"
	// WarningCritical means the balance is nearly gone (>=90% used, or
	// <=10% remaining).
	WarningCritical WarningLevel = "critical"
	// WarningDepleted means no credits remain.
	WarningDepleted WarningLevel = "depleted"
)

// Classify maps account state to a warning tier. Pure and side-effect free.
//
// Allocation-backed accounts are measured by consumption against the known
// monthly total; purchase-only accounts have no periodic reset to anchor a
// "used" percentage, so they are measured by what remains.
func Classify(account *models.CreditAccount) WarningLevel {
	if account == nil {
		return WarningNone
	}

	total := account.MonthlyAllocation + account.PurchasedCredits
	remaining := account.Remaining()

	if total == 0 {
		if remaining == 0 {
			return WarningDepleted
		}
		return WarningNone
	}
	if remaining == 0 {
		return WarningDepleted
	}

	if account.MonthlyAllocation > 0 {
		usedPercent := float64(account.UsedThisMonth) / float64(account.MonthlyAllocation) * 100
		switch {
		case usedPercent >= 90:
			return WarningCritical
		case usedPercent >= 75:
			return WarningLow
		default:
			return WarningNone
		}
	}

	remainingPercent := float64(remaining) / float64(total) * 100
	switch {
	case remainingPercent <= 10:
		return WarningCritical
	case remainingPercent <= 25:
		return WarningLow
	default:
		return WarningNone
	}
}
