// Package ledger implements the per-user generation-credit ledger: the
// account balance model, the atomic deduction engine with optimistic
// concurrency, the billing-cycle reset policy, the append-only transaction
// log, and the warning classifier.
//
// There is no in-process lock guarding an account. Every mutation goes
// through a conditional UPDATE matching the fields the engine mutates, and a
// failed condition triggers a bounded re-read-and-retry. Within one account
// this makes updates linearizable; across accounts all access is independent.
package ledger

import (
	"context"
	"time"

	"github.com/creatorpilot/creditledger/internal/models"
	"github.com/creatorpilot/creditledger/internal/subscription"
	"gorm.io/gorm"
)

// Balance is the caller-facing snapshot of an account.
type Balance struct {
	Plan              models.Plan  `json:"plan"`
	Monthly           int          `json:"monthly"`
	Used              int          `json:"used"`
	Purchased         int          `json:"purchased"`
	Remaining         int          `json:"remaining"`
	BonusCreditUsed   bool         `json:"bonus_credit_used"`
	BillingCycleStart time.Time    `json:"billing_cycle_start"`
	Warning           WarningLevel `json:"warning,omitempty"`
}

// Service bundles the ledger components behind the three operations exposed
// to the HTTP layer.
type Service struct {
	store  *AccountStore
	cycle  *CycleManager
	engine *Engine
	txlog  *TransactionLog
	clock  Clock
}

// NewService wires the ledger components against a database handle and a
// subscription lookup. A nil clock defaults to the system clock.
func NewService(db *gorm.DB, subs subscription.Lookup, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	store := NewAccountStore(db)
	txlog := NewTransactionLog(db)
	cycle := NewCycleManager(store, subs, txlog, clock)
	engine := NewEngine(store, cycle, txlog, clock)
	return &Service{store: store, cycle: cycle, engine: engine, txlog: txlog, clock: clock}
}

// GetBalance returns the current balance snapshot, creating the account and
// applying any due cycle reset first.
func (s *Service) GetBalance(ctx context.Context, userID uint64) (*Balance, error) {
	if errEnsure := s.engine.EnsureAccount(ctx, userID); errEnsure != nil {
		return nil, errEnsure
	}
	if errCycle := s.cycle.MaybeResetCycle(ctx, userID); errCycle != nil {
		return nil, errCycle
	}
	account, errRead := s.store.Read(ctx, userID)
	if errRead != nil {
		return nil, errRead
	}
	return balanceOf(account), nil
}

// Deduct spends one credit and returns the post-deduction balance.
func (s *Service) Deduct(ctx context.Context, userID uint64, description string) (*Balance, error) {
	account, errDeduct := s.engine.Deduct(ctx, userID, description)
	if errDeduct != nil {
		return nil, errDeduct
	}
	return balanceOf(account), nil
}

// CreditPurchase adds purchased credits and returns the resulting balance.
func (s *Service) CreditPurchase(ctx context.Context, userID uint64, amount int) (*Balance, error) {
	account, errPurchase := s.engine.CreditPurchase(ctx, userID, amount)
	if errPurchase != nil {
		return nil, errPurchase
	}
	return balanceOf(account), nil
}

// Transactions returns a page of the user's audit history.
func (s *Service) Transactions(ctx context.Context, userID uint64, page, pageSize int, search string) ([]models.CreditTransaction, int64, error) {
	return s.txlog.List(ctx, userID, page, pageSize, search)
}

// balanceOf converts an account row into the caller-facing snapshot.
func balanceOf(account *models.CreditAccount) *Balance {
	return &Balance{
		Plan:              account.Plan,
		Monthly:           account.MonthlyAllocation,
		Used:              account.UsedThisMonth,
		Purchased:         account.PurchasedCredits,
		Remaining:         account.Remaining(),
		BonusCreditUsed:   account.BonusCreditUsed,
		BillingCycleStart: account.BillingCycleStart,
		Warning:           Classify(account),
	}
}
