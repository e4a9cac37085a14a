package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/creatorpilot/creditledger/internal/models"
)

// ErrNotFound indicates an account row is missing after EnsureAccount should
// have created it. This is a storage invariant violation, not a user error.
var ErrNotFound = errors.New("ledger: credit account not found")

// CreditExhaustedError reports that every credit source is spent, including
// the once-per-cycle grace credit. It is an expected, user-recoverable
// condition carrying what the caller needs to render an upgrade prompt.
type CreditExhaustedError struct {
	Plan      models.Plan
	NextReset time.Time
}

// Error implements the error interface.
func (e *CreditExhaustedError) Error() string {
	return fmt.Sprintf("ledger: credits exhausted for plan %q, next reset %s", e.Plan, e.NextReset.Format(time.RFC3339))
}

// HighContentionError reports that the optimistic-concurrency retry bound was
// exceeded. Sustained contention on a single user's row indicates a caller
// bug (duplicate concurrent submits) rather than transient load.
type HighContentionError struct {
	UserID   uint64
	Attempts int
}

// Error implements the error interface.
func (e *HighContentionError) Error() string {
	return fmt.Sprintf("ledger: update contention for user %d after %d attempts", e.UserID, e.Attempts)
}
