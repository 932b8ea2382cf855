package shared

import "errors"

// Error taxonomy shared by every ledger module. Domain packages wrap these
// sentinels with their own context so callers can match on the class with
// errors.Is while keeping package-local messages.
var (
	// ErrValidation indicates malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrLocked indicates a structural change to a locked record.
	ErrLocked = errors.New("record locked")
	// ErrConflict indicates the record is referenced elsewhere.
	ErrConflict = errors.New("record in use")
	// ErrPeriodClosed indicates an edit or delete of an entry whose
	// accounting day has already passed, without override privilege.
	ErrPeriodClosed = errors.New("accounting period closed")
	// ErrInsufficientFunds indicates a payment exceeding the remaining balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConsistency indicates ledger state that must never be served,
	// such as an account with no resolvable normal side or a snapshot
	// that could not be healed.
	ErrConsistency = errors.New("ledger state inconsistent")
)
