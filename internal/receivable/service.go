package receivable

import (
	"context"
	"fmt"
	"time"

	"github.com/cashbook-erp/cashbook/internal/journal"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// RepositoryPort abstracts receivable persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, in CreateInput) (Receivable, error)
	Get(ctx context.Context, id int64) (Receivable, error)
	List(ctx context.Context, filter ListFilter) ([]Receivable, error)
	Delete(ctx context.Context, id int64) error
}

// Ledger posts the journal entry behind each installment.
type Ledger interface {
	Post(ctx context.Context, in journal.PostInput, asOf time.Time) (journal.Entry, error)
}

// Service manages employee receivables. The remaining-amount check and
// the installment counter run under a row lock, so two concurrent
// payments can never both fit into the same remainder.
type Service struct {
	repo   RepositoryPort
	ledger Ledger
}

// NewService constructs the receivable service.
func NewService(repo RepositoryPort, ledger Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Create opens a receivable.
func (s *Service) Create(ctx context.Context, in CreateInput) (Receivable, error) {
	if err := in.Validate(); err != nil {
		return Receivable{}, err
	}
	return s.repo.Insert(ctx, in)
}

// Pay applies one installment. The row update commits first, then the
// payment is journaled: a failed journal post surfaces as an error with
// the installment already recorded, which the integrity job reconciles.
func (s *Service) Pay(ctx context.Context, in PayInput, asOf time.Time) (Receivable, error) {
	if err := in.Validate(); err != nil {
		return Receivable{}, err
	}
	var updated Receivable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, in.ReceivableID)
		if err != nil {
			return err
		}
		if current.Status == StatusSettled {
			return ErrSettled
		}
		if in.Amount.GreaterThan(current.Remaining()) {
			return fmt.Errorf("%w: remaining %s, payment %s",
				ErrOverpayment, shared.FormatAmount(current.Remaining()), shared.FormatAmount(in.Amount))
		}
		paid := current.Paid.Add(in.Amount)
		status := StatusOpen
		if paid.Equal(current.Amount) {
			status = StatusSettled
		}
		updated, err = tx.ApplyPayment(ctx, current.ID, paid, current.PaymentCount+1, status)
		return err
	})
	if err != nil {
		return Receivable{}, err
	}
	warehouseID := in.WarehouseID
	if warehouseID == 0 {
		warehouseID = updated.WarehouseID
	}
	_, err = s.ledger.Post(ctx, journal.PostInput{
		DateIssued:      shared.DateOnly(asOf),
		DebitAccountID:  in.CashAccountID,
		CreditAccountID: in.ReceivableAccountID,
		Amount:          in.Amount,
		TrxType:         journal.TrxTypeReceivable,
		Description: fmt.Sprintf("Receivable payment #%d - %s (%s of %s)",
			updated.PaymentCount, updated.EmployeeName,
			shared.FormatAmount(updated.Paid), shared.FormatAmount(updated.Amount)),
		WarehouseID: warehouseID,
		UserID:      in.UserID,
	}, asOf)
	if err != nil {
		return Receivable{}, fmt.Errorf("receivable: installment recorded but journal post failed: %w", err)
	}
	return updated, nil
}

// Get fetches one receivable.
func (s *Service) Get(ctx context.Context, id int64) (Receivable, error) {
	return s.repo.Get(ctx, id)
}

// List returns receivables matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Receivable, error) {
	if filter.Page.PerPage == 0 {
		filter.Page = shared.NewPagination(filter.Page.Page, 10, 0)
	}
	return s.repo.List(ctx, filter)
}

// Delete removes a receivable with no payments yet.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.PaymentCount > 0 {
		return fmt.Errorf("receivable: has recorded payments: %w", shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}
