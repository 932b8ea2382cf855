package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, entryID int64) (Entry, error)
	GetByInvoice(ctx context.Context, invoice string) ([]Entry, error)
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	EntriesForAccount(ctx context.Context, accountID int64, start, end time.Time) ([]Entry, error)
	SetConfirmed(ctx context.Context, entryIDs []int64, confirmed bool) (int64, error)
	SetStatus(ctx context.Context, entryID int64, status int) error
}

// Invalidator drops derived read-side state after a ledger mutation.
type Invalidator interface {
	InvalidateBalances(ctx context.Context)
}

// Service coordinates posting, bounded edits, and deletes. Balances are
// never written here: the journal is the source of truth and every balance
// is a projection over it.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// WithInvalidator wires cache invalidation for derived balance views.
func (s *Service) WithInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// Post validates and persists one journal entry. The invoice sequence for
// the (poster, day, class) scope is assigned under an advisory lock so
// concurrent posts can never hand out the same number. asOf is the posting
// instant; the accounting date stays in.DateIssued.
func (s *Service) Post(ctx context.Context, in PostInput, asOf time.Time) (Entry, error) {
	entries, err := s.PostGroup(ctx, []PostInput{in}, asOf)
	if err != nil {
		return Entry{}, err
	}
	return entries[0], nil
}

// PostGroup persists several entries under one shared invoice number in a
// single transaction, e.g. an inter-branch mutation plus its fee leg.
func (s *Service) PostGroup(ctx context.Context, inputs []PostInput, asOf time.Time) ([]Entry, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("journal: no entries supplied: %w", shared.ErrValidation)
	}
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			return nil, err
		}
		if inputs[i].DateIssued.IsZero() {
			inputs[i].DateIssued = shared.DateOnly(asOf)
		}
	}
	scope := JournalScope(inputs[0].UserID, asOf)
	var entries []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AcquireSequenceLock(ctx, scope.LockKey()); err != nil {
			return err
		}
		last, err := tx.MaxInvoiceSequence(ctx, scope)
		if err != nil {
			return err
		}
		invoice := FormatInvoice(scope, last+1)
		for _, in := range inputs {
			ok, err := tx.AccountsExist(ctx, in.DebitAccountID, in.CreditAccountID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrAccountMissing
			}
			entry, err := tx.InsertEntry(ctx, invoice, in)
			if err != nil {
				return err
			}
			if err := tx.MarkAccountsLocked(ctx, in.DebitAccountID, in.CreditAccountID); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		first := entries[0]
		return tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:     first.UserID,
			WarehouseID: first.WarehouseID,
			Action:      "journal.post",
			Entity:      "journal_entry",
			EntityID:    first.Invoice,
			Description: fmt.Sprintf("Posted %s %s amount %s", first.TrxType, first.Invoice, shared.FormatAmount(first.Amount)),
			Meta:        map[string]any{"entries": len(entries)},
			At:          asOf,
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return entries, nil
}

// TransferInput captures a cash transfer posting.
type TransferInput struct {
	DateIssued      time.Time
	DebitAccountID  int64
	CreditAccountID int64
	Amount          decimal.Decimal
	FeeAmount       decimal.Decimal
	CustomerName    string
	Description     string
	WarehouseID     int64
	UserID          int64
}

// PostTransfer posts a money transfer entry.
func (s *Service) PostTransfer(ctx context.Context, in TransferInput, asOf time.Time) (Entry, error) {
	description := in.Description
	if description == "" {
		description = "Money transfer"
	}
	if in.CustomerName != "" {
		description = fmt.Sprintf("%s - %s", description, in.CustomerName)
	}
	return s.Post(ctx, PostInput{
		DateIssued:      in.DateIssued,
		DebitAccountID:  in.DebitAccountID,
		CreditAccountID: in.CreditAccountID,
		Amount:          in.Amount,
		FeeAmount:       in.FeeAmount,
		TrxType:         TrxTypeTransfer,
		Description:     description,
		WarehouseID:     in.WarehouseID,
		UserID:          in.UserID,
	}, asOf)
}

// PostDeposit posts a cash deposit entry.
func (s *Service) PostDeposit(ctx context.Context, in TransferInput, asOf time.Time) (Entry, error) {
	post := PostInput{
		DateIssued:      in.DateIssued,
		DebitAccountID:  in.DebitAccountID,
		CreditAccountID: in.CreditAccountID,
		Amount:          in.Amount,
		FeeAmount:       in.FeeAmount,
		TrxType:         TrxTypeDeposit,
		Description:     in.Description,
		WarehouseID:     in.WarehouseID,
		UserID:          in.UserID,
	}
	return s.Post(ctx, post, asOf)
}

// PostVoucher posts a voucher sale entry.
func (s *Service) PostVoucher(ctx context.Context, in TransferInput, asOf time.Time) (Entry, error) {
	post := PostInput{
		DateIssued:      in.DateIssued,
		DebitAccountID:  in.DebitAccountID,
		CreditAccountID: in.CreditAccountID,
		Amount:          in.Amount,
		FeeAmount:       in.FeeAmount,
		TrxType:         TrxTypeVoucher,
		Description:     in.Description,
		WarehouseID:     in.WarehouseID,
		UserID:          in.UserID,
	}
	return s.Post(ctx, post, asOf)
}

// MutationInput captures an inter-branch mutation: a principal movement
// plus an optional fee leg, both under one invoice.
type MutationInput struct {
	DateIssued       time.Time
	DebitAccountID   int64
	CreditAccountID  int64
	Amount           decimal.Decimal
	FeeAmount        decimal.Decimal
	FeeDebitAccount  int64
	FeeCreditAccount int64
	Description      string
	WarehouseID      int64
	UserID           int64
}

// PostMutation posts an inter-branch mutation. When a fee applies, the fee
// leg shares the principal's invoice so GetByInvoice reads the pair as one
// posting.
func (s *Service) PostMutation(ctx context.Context, in MutationInput, asOf time.Time) ([]Entry, error) {
	inputs := []PostInput{{
		DateIssued:      in.DateIssued,
		DebitAccountID:  in.DebitAccountID,
		CreditAccountID: in.CreditAccountID,
		Amount:          in.Amount,
		TrxType:         TrxTypeMutation,
		Description:     in.Description,
		WarehouseID:     in.WarehouseID,
		UserID:          in.UserID,
	}}
	if in.FeeAmount.IsPositive() && in.FeeDebitAccount != 0 && in.FeeCreditAccount != 0 {
		inputs = append(inputs, PostInput{
			DateIssued:      in.DateIssued,
			DebitAccountID:  in.FeeDebitAccount,
			CreditAccountID: in.FeeCreditAccount,
			Amount:          in.FeeAmount,
			TrxType:         TrxTypeMutation,
			Description:     fmt.Sprintf("Mutation fee - %s", in.Description),
			WarehouseID:     in.WarehouseID,
			UserID:          in.UserID,
		})
	}
	return s.PostGroup(ctx, inputs, asOf)
}

// Update applies a bounded edit: amount, fee, and description only. Entries
// whose accounting day predates asOf require override privilege; the old
// and new value of every changed numeric field is activity-logged in the
// same transaction.
func (s *Service) Update(ctx context.Context, in UpdateInput, asOf time.Time) (Entry, error) {
	if in.ID == 0 {
		return Entry{}, fmt.Errorf("journal: entry id required: %w", shared.ErrValidation)
	}
	if in.Amount == nil && in.FeeAmount == nil && in.Description == nil {
		return Entry{}, ErrNoEditableFields
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return Entry{}, ErrNegativeAmount
	}
	actor, _ := shared.ActorFromContext(ctx)
	var updated Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, in.ID)
		if err != nil {
			return err
		}
		if err := guardPeriod(current, asOf, actor); err != nil {
			return err
		}
		updated, err = tx.UpdateEntryFields(ctx, in)
		if err != nil {
			return err
		}
		meta := map[string]any{}
		var changes []string
		if in.Amount != nil && !in.Amount.Equal(current.Amount) {
			meta["amount"] = map[string]string{"old": current.Amount.String(), "new": in.Amount.String()}
			changes = append(changes, fmt.Sprintf("amount %s to %s",
				shared.FormatAmount(current.Amount), shared.FormatAmount(updated.Amount)))
		}
		if in.FeeAmount != nil && !in.FeeAmount.Equal(current.FeeAmount) {
			meta["fee_amount"] = map[string]string{"old": current.FeeAmount.String(), "new": in.FeeAmount.String()}
			changes = append(changes, fmt.Sprintf("fee %s to %s",
				shared.FormatAmount(current.FeeAmount), shared.FormatAmount(updated.FeeAmount)))
		}
		if in.Description != nil && *in.Description != current.Description {
			meta["description"] = map[string]string{"old": current.Description, "new": *in.Description}
			changes = append(changes, "description")
		}
		description := fmt.Sprintf("Updated %s", current.Invoice)
		if len(changes) > 0 {
			description = fmt.Sprintf("Updated %s: %s", current.Invoice, strings.Join(changes, ", "))
		}
		return tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:     actor.UserID,
			WarehouseID: current.WarehouseID,
			Action:      "journal.update",
			Entity:      "journal_entry",
			EntityID:    current.Invoice,
			Description: description,
			Meta:        meta,
			At:          asOf,
		})
	})
	if err != nil {
		return Entry{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes an entry and every same-invoice dependent detail row in
// one transaction. The same period guard as Update applies; the activity
// record reconstructs the entry from account names and formatted amounts.
func (s *Service) Delete(ctx context.Context, entryID int64, asOf time.Time) error {
	actor, _ := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if err := guardPeriod(current, asOf, actor); err != nil {
			return err
		}
		names, err := tx.AccountNames(ctx, []int64{current.DebitAccountID, current.CreditAccountID})
		if err != nil {
			return err
		}
		if _, err := tx.DeleteDependentsByInvoice(ctx, current.Invoice); err != nil {
			return err
		}
		if err := tx.DeleteEntry(ctx, entryID); err != nil {
			return err
		}
		return tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:     actor.UserID,
			WarehouseID: current.WarehouseID,
			Action:      "journal.delete",
			Entity:      "journal_entry",
			EntityID:    current.Invoice,
			Description: fmt.Sprintf("Deleted %s: debit %s, credit %s, amount %s, fee %s",
				current.Invoice, names[current.DebitAccountID], names[current.CreditAccountID],
				shared.FormatAmount(current.Amount), shared.FormatAmount(current.FeeAmount)),
			At: asOf,
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Get fetches one journal entry.
func (s *Service) Get(ctx context.Context, entryID int64) (Entry, error) {
	return s.repo.Get(ctx, entryID)
}

// GetByInvoice returns every entry sharing an invoice number.
func (s *Service) GetByInvoice(ctx context.Context, invoice string) ([]Entry, error) {
	return s.repo.GetByInvoice(ctx, invoice)
}

// List returns entries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if filter.Page.PerPage == 0 {
		filter.Page = shared.NewPagination(filter.Page.Page, 10, 0)
	}
	if filter.End.IsZero() {
		filter.End = shared.EndOfDay(time.Now())
	}
	return s.repo.List(ctx, filter)
}

// Confirm flips the manual review flag on a batch of entries.
func (s *Service) Confirm(ctx context.Context, entryIDs []int64, confirmed bool) (int64, error) {
	if len(entryIDs) == 0 {
		return 0, fmt.Errorf("journal: no entry ids supplied: %w", shared.ErrValidation)
	}
	return s.repo.SetConfirmed(ctx, entryIDs, confirmed)
}

// SetDeliveryStatus updates the workflow flag of one entry.
func (s *Service) SetDeliveryStatus(ctx context.Context, entryID int64, status int) error {
	return s.repo.SetStatus(ctx, entryID, status)
}

// guardPeriod rejects edits and deletes of entries whose accounting day
// has passed, unless the actor carries override privilege.
func guardPeriod(entry Entry, asOf time.Time, actor shared.Actor) error {
	if shared.DateOnly(entry.DateIssued).Before(shared.DateOnly(asOf)) && !actor.CanOverridePeriod {
		return ErrPeriodClosed
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.InvalidateBalances(ctx)
	}
}
