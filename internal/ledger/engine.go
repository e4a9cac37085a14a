package ledger

import (
	"context"
	"fmt"

	"github.com/creatorpilot/creditledger/internal/models"
)

// Deduction sources recorded on generation log entries.
const (
	sourceMonthly   = "monthly"
	sourcePurchased = "purchased"
	sourceBonus     = "bonus"
)

// maxDeductAttempts bounds the optimistic-concurrency retry loop. Exceeding
// it fails fast instead of spinning: sustained contention on one user's own
// row means duplicate concurrent submits, not load.
const maxDeductAttempts = 3

// Engine performs the atomic spend and purchase operations. Correctness under
// concurrent requests comes entirely from the store's conditional write plus
// re-read-and-retry; no in-process lock guards an account.
type Engine struct {
	store *AccountStore
	cycle *CycleManager
	txlog *TransactionLog
	clock Clock
}

// NewEngine constructs an Engine.
func NewEngine(store *AccountStore, cycle *CycleManager, txlog *TransactionLog, clock Clock) *Engine {
	return &Engine{store: store, cycle: cycle, txlog: txlog, clock: clock}
}

// EnsureAccount creates the default account row if needed and writes the
// welcome log entry when this call performed the creation.
func (e *Engine) EnsureAccount(ctx context.Context, userID uint64) error {
	created, errEnsure := e.store.EnsureAccount(ctx, userID, e.clock.Now())
	if errEnsure != nil {
		return errEnsure
	}
	if created {
		e.txlog.Append(ctx, &models.CreditTransaction{
			UserID:       userID,
			Type:         models.TransactionTypeWelcome,
			Amount:       models.FreeLifetimeCredits,
			BalanceAfter: models.FreeLifetimeCredits,
			Description:  "welcome credits",
			CreatedAt:    e.clock.Now(),
		})
	}
	return nil
}

// Deduct spends exactly one credit for a user, choosing the source in strict
// priority order: monthly allocation, then purchased credits, then the
// once-per-cycle grace credit. Returns the post-deduction account state.
func (e *Engine) Deduct(ctx context.Context, userID uint64, description string) (*models.CreditAccount, error) {
	for attempt := 1; attempt <= maxDeductAttempts; attempt++ {
		if errEnsure := e.EnsureAccount(ctx, userID); errEnsure != nil {
			return nil, errEnsure
		}
		if errCycle := e.cycle.MaybeResetCycle(ctx, userID); errCycle != nil {
			return nil, errCycle
		}

		account, errRead := e.store.Read(ctx, userID)
		if errRead != nil {
			return nil, errRead
		}

		monthlyRemaining := account.MonthlyRemaining()
		totalRemaining := monthlyRemaining + account.PurchasedCredits

		next := *account
		var source string
		var amount int
		switch {
		case totalRemaining > 0:
			amount = -1
			if monthlyRemaining > 0 {
				source = sourceMonthly
				next.UsedThisMonth++
			} else {
				source = sourcePurchased
				next.PurchasedCredits--
			}
		case !account.BonusCreditUsed:
			source = sourceBonus
			next.BonusCreditUsed = true
		default:
			return nil, &CreditExhaustedError{
				Plan:      account.Plan,
				NextReset: account.BillingCycleStart.Add(CycleLength),
			}
		}

		now := e.clock.Now()
		next.UpdatedAt = now
		expected := ExpectedState{
			UsedThisMonth:    account.UsedThisMonth,
			PurchasedCredits: account.PurchasedCredits,
			BonusCreditUsed:  account.BonusCreditUsed,
		}
		updated, errUpdate := e.store.ConditionalUpdate(ctx, userID, expected, map[string]any{
			"used_this_month":   next.UsedThisMonth,
			"purchased_credits": next.PurchasedCredits,
			"bonus_credit_used": next.BonusCreditUsed,
			"updated_at":        now,
		})
		if errUpdate != nil {
			return nil, errUpdate
		}
		if !updated {
			// Lost the write race; retry against fresh state.
			continue
		}

		e.txlog.Append(ctx, &models.CreditTransaction{
			UserID:       userID,
			Type:         models.TransactionTypeGeneration,
			Amount:       amount,
			BalanceAfter: next.Remaining(),
			Description:  annotate(description, source),
			Metadata:     metadataJSON(source, account.BillingCycleStart),
			CreatedAt:    now,
		})
		return &next, nil
	}

	return nil, &HighContentionError{UserID: userID, Attempts: maxDeductAttempts}
}

// CreditPurchase adds non-expiring credits to an account through the same
// conditional-update retry pattern. Not subject to deduction-source logic.
func (e *Engine) CreditPurchase(ctx context.Context, userID uint64, amount int) (*models.CreditAccount, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("ledger: purchase amount must be positive, got %d", amount)
	}

	for attempt := 1; attempt <= maxDeductAttempts; attempt++ {
		if errEnsure := e.EnsureAccount(ctx, userID); errEnsure != nil {
			return nil, errEnsure
		}

		account, errRead := e.store.Read(ctx, userID)
		if errRead != nil {
			return nil, errRead
		}

		next := *account
		next.PurchasedCredits += amount
		now := e.clock.Now()
		next.UpdatedAt = now

		expected := ExpectedState{
			UsedThisMonth:    account.UsedThisMonth,
			PurchasedCredits: account.PurchasedCredits,
			BonusCreditUsed:  account.BonusCreditUsed,
		}
		updated, errUpdate := e.store.ConditionalUpdate(ctx, userID, expected, map[string]any{
			"purchased_credits": next.PurchasedCredits,
			"updated_at":        now,
		})
		if errUpdate != nil {
			return nil, errUpdate
		}
		if !updated {
			continue
		}

		e.txlog.Append(ctx, &models.CreditTransaction{
			UserID:       userID,
			Type:         models.TransactionTypePurchase,
			Amount:       amount,
			BalanceAfter: next.Remaining(),
			Description:  fmt.Sprintf("purchased %d credits", amount),
			Metadata:     metadataJSON(sourcePurchased, account.BillingCycleStart),
			CreatedAt:    now,
		})
		return &next, nil
	}

	return nil, &HighContentionError{UserID: userID, Attempts: maxDeductAttempts}
}

// annotate appends the deduction source to the caller description.
func annotate(description, source string) string {
	if description == "" {
		return fmt.Sprintf("generation (%s)", source)
	}
	return fmt.Sprintf("%s (%s)", description, source)
}
