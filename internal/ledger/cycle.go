package ledger

import (
	"context"
	"time"

	"github.com/creatorpilot/creditledger/internal/models"
	"github.com/creatorpilot/creditledger/internal/subscription"
)

// CycleLength is the rolling-window cycle used when no external subscription
// supplies a period end.
const CycleLength = 30 * 24 * time.Hour

// CycleManager decides whether a billing cycle boundary has passed and
// performs the usage reset. It runs as a cheap precondition before every
// balance read or deduction.
type CycleManager struct {
	store *AccountStore
	subs  subscription.Lookup
	txlog *TransactionLog
	clock Clock
}

// NewCycleManager constructs a CycleManager.
func NewCycleManager(store *AccountStore, subs subscription.Lookup, txlog *TransactionLog, clock Clock) *CycleManager {
	return &CycleManager{store: store, subs: subs, txlog: txlog, clock: clock}
}

// MaybeResetCycle resets usage counters if the current cycle has ended.
// The reset goes through the store's conditional write so it cannot stomp a
// concurrent deduction, but it does not retry: two racing resets compute the
// same target state, and a lost reset is re-evaluated on the next call.
func (m *CycleManager) MaybeResetCycle(ctx context.Context, userID uint64) error {
	account, errRead := m.store.Read(ctx, userID)
	if errRead != nil {
		return errRead
	}

	now := m.clock.Now()
	plan := account.Plan

	due := false
	record, errLookup := m.subs.Lookup(ctx, userID)
	if errLookup != nil {
		return errLookup
	}
	if record.Active() && record.CurrentPeriodEnd != nil {
		due = now.After(*record.CurrentPeriodEnd)
		plan = record.Plan
	} else {
		due = now.Sub(account.BillingCycleStart) > CycleLength
	}
	if !due {
		return nil
	}

	allocation := models.AllocationForPlan(plan)
	expected := ExpectedState{
		UsedThisMonth:    account.UsedThisMonth,
		PurchasedCredits: account.PurchasedCredits,
		BonusCreditUsed:  account.BonusCreditUsed,
	}
	updated, errUpdate := m.store.ConditionalUpdate(ctx, userID, expected, map[string]any{
		"plan":                plan,
		"monthly_allocation":  allocation,
		"used_this_month":     0,
		"bonus_credit_used":   false,
		"billing_cycle_start": now,
		"updated_at":          now,
	})
	if errUpdate != nil {
		return errUpdate
	}
	if !updated {
		// Lost a race with a deduction or another reset; the next check
		// re-reads fresh state.
		return nil
	}

	m.txlog.Append(ctx, &models.CreditTransaction{
		UserID:       userID,
		Type:         models.TransactionTypeMonthlyReset,
		Amount:       allocation,
		BalanceAfter: allocation + account.PurchasedCredits,
		Description:  "monthly credit reset",
		Metadata:     metadataJSON("", now),
		CreatedAt:    now,
	})
	return nil
}
