package correction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/journal"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// RepositoryPort abstracts correction persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, ref uuid.UUID, in CreateInput, wrapperID int64) (Correction, error)
	Get(ctx context.Context, id int64) (Correction, error)
	GetByRef(ctx context.Context, ref uuid.UUID) (Correction, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]Correction, error)
}

// Ledger is the journal surface corrections ride on.
type Ledger interface {
	Get(ctx context.Context, entryID int64) (journal.Entry, error)
	Post(ctx context.Context, in journal.PostInput, asOf time.Time) (journal.Entry, error)
	Delete(ctx context.Context, entryID int64, asOf time.Time) error
	Confirm(ctx context.Context, entryIDs []int64, confirmed bool) (int64, error)
}

// Service records and removes balance corrections. A correction never
// edits the referenced entry: it posts a zero-amount wrapper entry whose
// fee field carries the corrected value, then marks the referenced entry
// reviewed.
type Service struct {
	repo   RepositoryPort
	ledger Ledger
	newRef func() uuid.UUID
}

// NewService constructs the correction service.
func NewService(repo RepositoryPort, ledger Ledger) *Service {
	return &Service{repo: repo, ledger: ledger, newRef: uuid.New}
}

// Create posts the wrapper entry, records the correction row, and marks
// the referenced entry confirmed. asOf is the posting instant.
func (s *Service) Create(ctx context.Context, in CreateInput, asOf time.Time) (Correction, error) {
	if err := in.Validate(); err != nil {
		return Correction{}, err
	}
	original, err := s.ledger.Get(ctx, in.EntryID)
	if err != nil {
		return Correction{}, err
	}
	note := in.Note
	if note == "" {
		note = fmt.Sprintf("Balance correction for %s", original.Invoice)
	}
	warehouseID := in.WarehouseID
	if warehouseID == 0 {
		warehouseID = original.WarehouseID
	}
	wrapper, err := s.ledger.Post(ctx, journal.PostInput{
		DateIssued:      shared.DateOnly(asOf),
		DebitAccountID:  original.DebitAccountID,
		CreditAccountID: original.CreditAccountID,
		Amount:          decimal.Zero,
		FeeAmount:       in.Amount,
		TrxType:         journal.TrxTypeCorrection,
		Description:     note,
		WarehouseID:     warehouseID,
		UserID:          in.UserID,
	}, asOf)
	if err != nil {
		return Correction{}, err
	}
	created, err := s.repo.Insert(ctx, s.newRef(), in, wrapper.ID)
	if err != nil {
		return Correction{}, err
	}
	if _, err := s.ledger.Confirm(ctx, []int64{original.ID}, true); err != nil {
		return Correction{}, err
	}
	return created, nil
}

// Delete removes a correction and its wrapper entry. The wrapper delete
// runs through the journal service, so the period guard applies: a
// correction posted on a past day needs override privilege to remove.
func (s *Service) Delete(ctx context.Context, id int64, asOf time.Time) error {
	correction, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ledger.Delete(ctx, correction.WrapperID, asOf); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Get fetches one correction.
func (s *Service) Get(ctx context.Context, id int64) (Correction, error) {
	return s.repo.Get(ctx, id)
}

// GetByRef fetches one correction by public reference.
func (s *Service) GetByRef(ctx context.Context, ref uuid.UUID) (Correction, error) {
	return s.repo.GetByRef(ctx, ref)
}

// List returns corrections matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Correction, error) {
	if filter.Page.PerPage == 0 {
		filter.Page = shared.NewPagination(filter.Page.Page, 10, 0)
	}
	return s.repo.List(ctx, filter)
}
