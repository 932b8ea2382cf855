package snapshot

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// DailyBalance is one materialized (account, day) ending balance. Rows
// are pure derived data: deleting them all and rebuilding must reproduce
// the same values from the journal.
type DailyBalance struct {
	ID        int64
	AccountID int64
	Date      time.Time
	Ending    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrOpenDay rejects building a snapshot for a day that has not
	// ended yet; open days change under the writer's feet.
	ErrOpenDay = fmt.Errorf("snapshot: day is not closed yet: %w", shared.ErrValidation)
	// ErrBeforeEpoch rejects dates before the ledger epoch.
	ErrBeforeEpoch = fmt.Errorf("snapshot: date precedes ledger epoch: %w", shared.ErrValidation)
)
