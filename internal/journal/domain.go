package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Transaction classifications. Reporting groups by these; balance logic
// never looks at them.
const (
	TrxTypeTransfer   = "Transfer"
	TrxTypeWithdrawal = "Cash Withdrawal"
	TrxTypeDeposit    = "Deposit"
	TrxTypeVoucher    = "Voucher"
	TrxTypeMutation   = "Mutation"
	TrxTypeExpense    = "Expense"
	TrxTypeCorrection = "Correction"
	TrxTypeReceivable = "Receivable Payment"
	TrxTypeSales      = "Sales"
	TrxTypePurchase   = "Purchase"
)

// Entry is one two-sided journal line. It contributes +Amount to the debit
// account's raw activity and +Amount to the credit account's raw activity;
// the sign flips only when the account's normal side is applied.
type Entry struct {
	ID              int64
	Invoice         string
	DateIssued      time.Time
	DebitAccountID  int64
	CreditAccountID int64
	Amount          decimal.Decimal
	FeeAmount       decimal.Decimal
	TrxType         string
	Description     string
	WarehouseID     int64
	UserID          int64
	IsConfirmed     bool
	Status          int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PostInput groups fields required to post a journal entry.
type PostInput struct {
	DateIssued      time.Time
	DebitAccountID  int64
	CreditAccountID int64
	Amount          decimal.Decimal
	FeeAmount       decimal.Decimal
	TrxType         string
	Description     string
	WarehouseID     int64
	UserID          int64
}

// UpdateInput carries the bounded edit surface: amount, fee, and
// description. Nil fields are left untouched.
type UpdateInput struct {
	ID          int64
	Amount      *decimal.Decimal
	FeeAmount   *decimal.Decimal
	Description *string
}

// ListFilter narrows journal listings. AccountID matches either side.
type ListFilter struct {
	Start       time.Time
	End         time.Time
	AccountID   int64
	WarehouseID int64
	TrxType     string
	Search      string
	Page        shared.Pagination
}

var (
	// ErrEntryNotFound indicates missing journal entry.
	ErrEntryNotFound = fmt.Errorf("journal: entry %w", shared.ErrNotFound)
	// ErrAccountMissing indicates a posting against an unknown account.
	ErrAccountMissing = fmt.Errorf("journal: account does not exist: %w", shared.ErrValidation)
	// ErrNegativeAmount indicates amount below zero.
	ErrNegativeAmount = fmt.Errorf("journal: amount must not be negative: %w", shared.ErrValidation)
	// ErrPeriodClosed indicates an edit or delete of an entry whose
	// accounting day has passed, by an actor without override privilege.
	ErrPeriodClosed = fmt.Errorf("journal: %w", shared.ErrPeriodClosed)
	// ErrNoEditableFields indicates an update touching nothing in the
	// allowed set.
	ErrNoEditableFields = fmt.Errorf("journal: no editable fields supplied: %w", shared.ErrValidation)
)

// Validate ensures posting input meets minimum criteria.
func (in PostInput) Validate() error {
	if in.DebitAccountID == 0 || in.CreditAccountID == 0 {
		return ErrAccountMissing
	}
	if in.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if in.TrxType == "" {
		return fmt.Errorf("journal: transaction type required: %w", shared.ErrValidation)
	}
	if in.UserID == 0 {
		return fmt.Errorf("journal: posting user required: %w", shared.ErrValidation)
	}
	return nil
}
