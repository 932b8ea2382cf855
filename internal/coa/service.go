package coa

import (
	"context"
	"fmt"
	"time"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, accountID int64) (Account, error)
	GetCategory(ctx context.Context, categoryID int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error)
	AccountsByCategories(ctx context.Context, categoryIDs []int64, warehouseID *int64) ([]Account, error)
	AllAccounts(ctx context.Context) ([]Account, error)
}

// Service manages the chart of accounts registry.
type Service struct {
	repo     RepositoryPort
	activity shared.ActivityRecorder
	now      func() time.Time
}

// NewService constructs the registry service.
func NewService(repo RepositoryPort, activity shared.ActivityRecorder) *Service {
	return &Service{repo: repo, activity: activity, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount creates a chart of accounts entry with a generated code.
// The code is the category code plus a category-scoped three-digit sequence;
// the category row is locked first so concurrent creates cannot collide.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		category, err := tx.GetCategoryForUpdate(ctx, in.CategoryID)
		if err != nil {
			return err
		}
		if !category.NormalSide.Valid() {
			return fmt.Errorf("coa: category %d has no normal side: %w", category.ID, shared.ErrConsistency)
		}
		last, err := tx.MaxCodeSuffix(ctx, category.ID)
		if err != nil {
			return err
		}
		code := fmt.Sprintf("%s-%03d", category.Code, last+1)
		account, err = tx.InsertAccount(ctx, code, in)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.logActivity(ctx, "coa.create", account.ID, fmt.Sprintf("Created account %s (%s)", account.Name, account.Code), nil)
	return account, nil
}

// UpdateAccount renames an account or adjusts its configured starting balance.
func (s *Service) UpdateAccount(ctx context.Context, in UpdateAccountInput) (Account, error) {
	if in.ID == 0 {
		return Account{}, fmt.Errorf("coa: account id required: %w", shared.ErrValidation)
	}
	if in.Name == "" {
		return Account{}, fmt.Errorf("coa: account name required: %w", shared.ErrValidation)
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.UpdateAccount(ctx, in)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// DeleteAccount removes an unreferenced, unlocked account. The journal
// reference check is an existence test, never a cascading delete.
func (s *Service) DeleteAccount(ctx context.Context, accountID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if account.IsLocked {
			return ErrAccountLocked
		}
		referenced, err := tx.JournalReferenceExists(ctx, accountID)
		if err != nil {
			return err
		}
		if referenced {
			return ErrAccountInUse
		}
		return tx.DeleteAccount(ctx, accountID)
	})
	if err != nil {
		return err
	}
	s.logActivity(ctx, "coa.delete", accountID, fmt.Sprintf("Deleted account %d", accountID), nil)
	return nil
}

// DeleteAccounts removes a batch of accounts; any locked member rejects the
// whole batch.
func (s *Service) DeleteAccounts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("coa: no account ids supplied: %w", shared.ErrValidation)
	}
	var deleted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockedAccountIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(locked) > 0 {
			return fmt.Errorf("coa: accounts %v are locked: %w", locked, shared.ErrLocked)
		}
		deleted, err = tx.DeleteAccounts(ctx, ids)
		return err
	})
	return deleted, err
}

// ToggleWarehouseBinding assigns the account to the warehouse when currently
// unassigned and clears the assignment otherwise. Idempotent toggle used to
// manage which cash and bank accounts belong to which branch.
func (s *Service) ToggleWarehouseBinding(ctx context.Context, warehouseID, accountID int64) (Account, error) {
	if warehouseID == 0 {
		return Account{}, fmt.Errorf("coa: warehouse id required: %w", shared.ErrValidation)
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		var target *int64
		if current.WarehouseID == nil {
			target = &warehouseID
		}
		account, err = tx.SetWarehouse(ctx, accountID, target)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, accountID int64) (Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}

// GetCategory fetches one category.
func (s *Service) GetCategory(ctx context.Context, categoryID int64) (Category, error) {
	return s.repo.GetCategory(ctx, categoryID)
}

// List returns accounts matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	if filter.Page.PerPage == 0 {
		filter.Page = shared.NewPagination(filter.Page.Page, 10, 0)
	}
	return s.repo.ListAccounts(ctx, filter)
}

// ByCategories returns the accounts belonging to the given category ids,
// the primitive behind cash/bank and report category-range views.
func (s *Service) ByCategories(ctx context.Context, categoryIDs []int64, warehouseID *int64) ([]Account, error) {
	return s.repo.AccountsByCategories(ctx, categoryIDs, warehouseID)
}

// All returns the whole chart of accounts.
func (s *Service) All(ctx context.Context) ([]Account, error) {
	return s.repo.AllAccounts(ctx)
}

// Categories returns all account categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) logActivity(ctx context.Context, action string, accountID int64, description string, meta map[string]any) {
	if s.activity == nil {
		return
	}
	actor, _ := shared.ActorFromContext(ctx)
	_ = s.activity.Record(ctx, shared.ActivityLog{
		ActorID:     actor.UserID,
		WarehouseID: actor.WarehouseID,
		Action:      action,
		Entity:      "chart_of_account",
		EntityID:    fmt.Sprintf("%d", accountID),
		Description: description,
		Meta:        meta,
		At:          s.now(),
	})
}
