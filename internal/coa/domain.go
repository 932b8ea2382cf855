package coa

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// NormalSide fixes the sign convention for every account in a category.
type NormalSide string

const (
	// NormalSideDebit accumulates debits positively.
	NormalSideDebit NormalSide = "D"
	// NormalSideCredit accumulates credits positively.
	NormalSideCredit NormalSide = "C"
)

// Valid reports whether the side is one of the two known conventions.
func (s NormalSide) Valid() bool {
	return s == NormalSideDebit || s == NormalSideCredit
}

// Category is immutable reference data; it determines the normal balance
// side for every account that references it.
type Category struct {
	ID         int64
	Code       string
	Name       string
	NormalSide NormalSide
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Account models a chart of accounts entry. The normal side is always
// inherited from the category and never stored on the account itself.
type Account struct {
	ID              int64
	Code            string
	Name            string
	CategoryID      int64
	WarehouseID     *int64
	StartingBalance decimal.Decimal
	IsLocked        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateAccountInput groups fields required to create an account.
type CreateAccountInput struct {
	CategoryID      int64
	Name            string `validate:"required,min=3,max=255"`
	WarehouseID     *int64
	StartingBalance decimal.Decimal
}

// UpdateAccountInput carries the editable account fields.
type UpdateAccountInput struct {
	ID              int64
	Name            string `validate:"required,min=3,max=255"`
	StartingBalance decimal.Decimal
}

// ListFilter narrows account listings.
type ListFilter struct {
	Search      string
	CategoryIDs []int64
	WarehouseID *int64
	Page        shared.Pagination
}

var (
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = fmt.Errorf("coa: account %w", shared.ErrNotFound)
	// ErrCategoryNotFound indicates missing account category.
	ErrCategoryNotFound = fmt.Errorf("coa: category %w", shared.ErrNotFound)
	// ErrNameTaken indicates the account name is already used.
	ErrNameTaken = fmt.Errorf("coa: account name already used: %w", shared.ErrValidation)
	// ErrAccountLocked indicates a delete on a locked account.
	ErrAccountLocked = fmt.Errorf("coa: account is locked: %w", shared.ErrLocked)
	// ErrAccountInUse indicates the account appears on a journal side.
	ErrAccountInUse = fmt.Errorf("coa: account referenced by journal entries: %w", shared.ErrConflict)
)

// Validate ensures creation input meets minimum criteria.
func (in CreateAccountInput) Validate() error {
	if in.CategoryID == 0 {
		return fmt.Errorf("coa: category required: %w", shared.ErrValidation)
	}
	if in.Name == "" {
		return fmt.Errorf("coa: account name required: %w", shared.ErrValidation)
	}
	return nil
}
