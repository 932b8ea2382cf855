package receivable

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Receivable states.
const (
	StatusOpen    = 0
	StatusSettled = 1
)

// Receivable is money owed by an employee, paid back in installments.
// Paid only ever grows; the row settles when Paid reaches Amount.
type Receivable struct {
	ID           int64
	EmployeeID   int64
	EmployeeName string
	Amount       decimal.Decimal
	Paid         decimal.Decimal
	PaymentCount int
	Status       int
	Description  string
	WarehouseID  int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Remaining is the unpaid portion.
func (r Receivable) Remaining() decimal.Decimal {
	return r.Amount.Sub(r.Paid)
}

// CreateInput groups fields required to open a receivable.
type CreateInput struct {
	EmployeeID   int64
	EmployeeName string `validate:"required,min=3,max=255"`
	Amount       decimal.Decimal
	Description  string
	WarehouseID  int64
}

// PayInput captures one installment. The payment moves money from the
// paying side into the cash account and is journaled like any other
// transaction.
type PayInput struct {
	ReceivableID        int64
	Amount              decimal.Decimal
	CashAccountID       int64
	ReceivableAccountID int64
	WarehouseID         int64
	UserID              int64
}

// ListFilter narrows receivable listings.
type ListFilter struct {
	Status      *int
	EmployeeID  int64
	WarehouseID int64
	Search      string
	Page        shared.Pagination
}

var (
	// ErrReceivableNotFound indicates missing receivable.
	ErrReceivableNotFound = fmt.Errorf("receivable: %w", shared.ErrNotFound)
	// ErrOverpayment indicates an installment larger than the remaining
	// debt.
	ErrOverpayment = fmt.Errorf("receivable: payment exceeds remaining amount: %w", shared.ErrInsufficientFunds)
	// ErrSettled indicates a payment against an already settled row.
	ErrSettled = fmt.Errorf("receivable: already settled: %w", shared.ErrConflict)
)

// Validate ensures creation input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.EmployeeName == "" {
		return fmt.Errorf("receivable: employee name required: %w", shared.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("receivable: amount must be positive: %w", shared.ErrValidation)
	}
	return nil
}

// Validate ensures payment input meets minimum criteria.
func (in PayInput) Validate() error {
	if in.ReceivableID == 0 {
		return fmt.Errorf("receivable: receivable id required: %w", shared.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("receivable: payment must be positive: %w", shared.ErrValidation)
	}
	if in.CashAccountID == 0 || in.ReceivableAccountID == 0 {
		return fmt.Errorf("receivable: payment accounts required: %w", shared.ErrValidation)
	}
	if in.UserID == 0 {
		return fmt.Errorf("receivable: user required: %w", shared.ErrValidation)
	}
	return nil
}
