package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/creatorpilot/creditledger/internal/models"
	"gorm.io/gorm"
)

func TestDeduct_SourcePriorityMonthlyFirst(t *testing.T) {
	conn := newTestDB(t)
	clock := newFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(conn, clock, nil)

	seedAccount(t, conn, &models.CreditAccount{
		UserID:            20,
		Plan:              models.PlanPro,
		MonthlyAllocation: 30,
		UsedThisMonth:     29,
		PurchasedCredits:  2,
		BillingCycleStart: clock.Now(),
	})

	// Monthly allocation is consumed before purchased credits.
	balance, errDeduct := svc.Deduct(context.Background(), 20, "caption")
	if errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}
	if balance.Used != 30 || balance.Purchased != 2 {
		t.Fatalf("expected monthly spend first, got used=%d purchased=%d", balance.Used, balance.Purchased)
	}

	// Monthly exhausted: purchased credits are next.
	balance, errDeduct = svc.Deduct(context.Background(), 20, "caption")
	if errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}
	if balance.Used != 30 || balance.Purchased != 1 {
		t.Fatalf("expected purchased spend, got used=%d purchased=%d", balance.Used, balance.Purchased)
	}
}

func TestDeduct_BonusGrantedExactlyOnce(t *testing.T) {
	conn := newTestDB(t)
	clock := newFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(conn, clock, nil)

	seedAccount(t, conn, &models.CreditAccount{
		UserID:            21,
		Plan:              models.PlanFree,
		MonthlyAllocation: 0,
		UsedThisMonth:     0,
		PurchasedCredits:  0,
		BillingCycleStart: clock.Now(),
	})

	balance, errDeduct := svc.Deduct(context.Background(), 21, "caption")
	if errDeduct != nil {
		t.Fatalf("bonus deduct: %v", errDeduct)
	}
	if !balance.BonusCreditUsed || balance.Remaining != 0 {
		t.Fatalf("expected bonus grant with unchanged balance, got %+v", balance)
	}

	_, errDeduct = svc.Deduct(context.Background(), 21, "caption")
	var exhausted *CreditExhaustedError
	if !errors.As(errDeduct, &exhausted) {
		t.Fatalf("expected CreditExhaustedError after bonus, got %v", errDeduct)
	}
}

func TestDeduct_ConcurrentNoOverspend(t *testing.T) {
	conn := newSharedTestDB(t)
	clock := newFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(conn, clock, nil)

	const credits = 4
	const callers = credits + 2
	seedAccount(t, conn, &models.CreditAccount{
		UserID:            30,
		Plan:              models.PlanFree,
		MonthlyAllocation: 0,
		UsedThisMonth:     0,
		PurchasedCredits:  credits,
		BonusCreditUsed:   true,
		BillingCycleStart: clock.Now(),
	})

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errDeduct := svc.Deduct(context.Background(), 30, "fanout")
			results <- errDeduct
		}()
	}
	wg.Wait()
	close(results)

	successes, exhaustions, contentions := 0, 0, 0
	for errDeduct := range results {
		switch {
		case errDeduct == nil:
			successes++
		case errors.As(errDeduct, new(*CreditExhaustedError)):
			exhaustions++
		case errors.As(errDeduct, new(*HighContentionError)):
			contentions++
		default:
			t.Fatalf("unexpected deduct error: %v", errDeduct)
		}
	}

	if successes > credits {
		t.Fatalf("over-spend: %d successes for %d credits", successes, credits)
	}
	if contentions == 0 && successes != credits {
		t.Fatalf("expected all %d credits spent, got %d successes, %d exhaustions", credits, successes, exhaustions)
	}

	account := &models.CreditAccount{}
	if errFind := conn.Where("user_id = ?", 30).First(account).Error; errFind != nil {
		t.Fatalf("read account: %v", errFind)
	}
	if account.PurchasedCredits != credits-successes {
		t.Fatalf("ledger drift: %d successes but purchased=%d", successes, account.PurchasedCredits)
	}
	if got := countTransactions(t, conn, 30, models.TransactionTypeGeneration); got != int64(successes) {
		t.Fatalf("expected %d generation entries, got %d", successes, got)
	}
}

func TestDeduct_ConcurrentBonusAtMostOnce(t *testing.T) {
	conn := newSharedTestDB(t)
	clock := newFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(conn, clock, nil)

	seedAccount(t, conn, &models.CreditAccount{
		UserID:            31,
		Plan:              models.PlanFree,
		MonthlyAllocation: 0,
		UsedThisMonth:     0,
		PurchasedCredits:  0,
		BonusCreditUsed:   false,
		BillingCycleStart: clock.Now(),
	})

	const callers = 4
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errDeduct := svc.Deduct(context.Background(), 31, "fanout")
			results <- errDeduct
		}()
	}
	wg.Wait()
	close(results)

	grants := 0
	for errDeduct := range results {
		if errDeduct == nil {
			grants++
		}
	}
	if grants > 1 {
		t.Fatalf("bonus granted %d times, want at most once", grants)
	}

	var bonusEntries int64
	if errCount := conn.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND type = ? AND amount = 0", 31, models.TransactionTypeGeneration).
		Count(&bonusEntries).Error; errCount != nil {
		t.Fatalf("count bonus entries: %v", errCount)
	}
	if bonusEntries > 1 {
		t.Fatalf("expected at most one bonus log entry, got %d", bonusEntries)
	}
}

// TestDeduct_FailsFastUnderSustainedContention interferes with every
// conditional write through an update callback, forcing the retry bound.
func TestDeduct_FailsFastUnderSustainedContention(t *testing.T) {
	conn := newSharedTestDB(t)
	clock := newFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(conn, clock, nil)

	seedAccount(t, conn, &models.CreditAccount{
		UserID:            32,
		Plan:              models.PlanFree,
		MonthlyAllocation: 0,
		UsedThisMonth:     0,
		PurchasedCredits:  3,
		BillingCycleStart: clock.Now(),
	})

	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	// Bump the locked-on field right before every UPDATE so the engine's
	// expected state is always stale.
	errRegister := conn.Callback().Update().Before("gorm:update").Register("test_contention", func(tx *gorm.DB) {
		if _, errExec := sqlDB.Exec("UPDATE credit_accounts SET purchased_credits = purchased_credits + 1 WHERE user_id = 32"); errExec != nil {
			t.Errorf("interfering update: %v", errExec)
		}
	})
	if errRegister != nil {
		t.Fatalf("register callback: %v", errRegister)
	}

	_, errDeduct := svc.Deduct(context.Background(), 32, "caption")
	var contention *HighContentionError
	if !errors.As(errDeduct, &contention) {
		t.Fatalf("expected HighContentionError, got %v", errDeduct)
	}
	if contention.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", contention.Attempts)
	}
	if got := countTransactions(t, conn, 32, models.TransactionTypeGeneration); got != 0 {
		t.Fatalf("no generation entry may exist after a failed deduct, got %d", got)
	}
}
