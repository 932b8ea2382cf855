package correction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Correction is a balance correction against one journal entry. The
// correction itself is carried by a wrapper journal entry whose amount is
// zero and whose fee field holds the corrected value, so the adjustment
// shows up in reporting without moving any balance.
type Correction struct {
	ID          int64
	Ref         uuid.UUID
	EntryID     int64
	WrapperID   int64
	Amount      decimal.Decimal
	Note        string
	ImageURL    string
	WarehouseID int64
	UserID      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateInput groups fields required to record a correction.
type CreateInput struct {
	EntryID     int64
	Amount      decimal.Decimal
	Note        string
	ImageURL    string
	WarehouseID int64
	UserID      int64
}

// ListFilter narrows correction listings.
type ListFilter struct {
	Start       time.Time
	End         time.Time
	WarehouseID int64
	Page        shared.Pagination
}

var (
	// ErrCorrectionNotFound indicates missing correction.
	ErrCorrectionNotFound = fmt.Errorf("correction: %w", shared.ErrNotFound)
)

// Validate ensures creation input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.EntryID == 0 {
		return fmt.Errorf("correction: journal entry required: %w", shared.ErrValidation)
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("correction: amount must not be negative: %w", shared.ErrValidation)
	}
	if in.UserID == 0 {
		return fmt.Errorf("correction: user required: %w", shared.ErrValidation)
	}
	return nil
}
