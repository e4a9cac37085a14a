package ledger

import (
	"testing"

	"github.com/creatorpilot/creditledger/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		allocated int
		used      int
		purchased int
		want      WarningLevel
	}{
		{"empty free account", 0, 0, 0, WarningDepleted},
		{"fresh pro account", 30, 0, 0, WarningNone},
		{"pro below low threshold", 30, 22, 0, WarningNone},
		{"pro at 75 percent", 30, 23, 0, WarningLow},
		{"pro at 90 percent", 30, 27, 0, WarningCritical},
		{"pro fully used", 30, 30, 0, WarningDepleted},
		{"pro fully used with purchased left", 30, 30, 5, WarningCritical},
		{"purchase-only plenty left", 0, 0, 10, WarningNone},
		{"purchase-only quarter left", 0, 0, 4, WarningNone},
		{"purchase-only at 25 percent", 0, 0, 3, WarningNone},
		{"purchase-only single credit", 0, 0, 1, WarningNone},
		{"creator at critical", 100, 95, 0, WarningCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := &models.CreditAccount{
				MonthlyAllocation: tc.allocated,
				UsedThisMonth:     tc.used,
				PurchasedCredits:  tc.purchased,
			}
			if got := Classify(account); got != tc.want {
				t.Fatalf("classify(%d/%d used, %d purchased) = %q, want %q",
					tc.used, tc.allocated, tc.purchased, got, tc.want)
			}
		})
	}
}

// TestClassify_Monotonic verifies the tier only ever escalates as usage grows
// toward the allocation.
func TestClassify_Monotonic(t *testing.T) {
	rank := map[WarningLevel]int{
		WarningNone:     0,
		WarningLow:      1,
		WarningCritical: 2,
		WarningDepleted: 3,
	}

	account := &models.CreditAccount{MonthlyAllocation: 30}
	prev := Classify(account)
	for used := 1; used <= 30; used++ {
		account.UsedThisMonth = used
		got := Classify(account)
		if rank[got] < rank[prev] {
			t.Fatalf("warning regressed from %q to %q at used=%d", prev, got, used)
		}
		prev = got
	}
	if prev != WarningDepleted {
		t.Fatalf("expected depleted at full usage, got %q", prev)
	}
}
