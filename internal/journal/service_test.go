package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

type stubTx struct {
	maxSeq      int
	entry       Entry
	missingAcct bool
	updateErr   error

	lockedKeys  []int64
	inserted    []Entry
	updated     *UpdateInput
	deleted     []int64
	cascadedInv []string
	activity    []shared.ActivityLog
	lockedAccts [][2]int64
}

type stubRepo struct {
	tx *stubTx
}

func (r *stubRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r.tx)
}

func (r *stubRepo) Get(ctx context.Context, id int64) (Entry, error) { return r.tx.entry, nil }

func (r *stubRepo) GetByInvoice(ctx context.Context, invoice string) ([]Entry, error) {
	return []Entry{r.tx.entry}, nil
}

func (r *stubRepo) List(ctx context.Context, filter ListFilter) ([]Entry, error) { return nil, nil }

func (r *stubRepo) EntriesForAccount(ctx context.Context, id int64, start, end time.Time) ([]Entry, error) {
	return nil, nil
}

func (r *stubRepo) SetConfirmed(ctx context.Context, ids []int64, confirmed bool) (int64, error) {
	return int64(len(ids)), nil
}

func (r *stubRepo) SetStatus(ctx context.Context, id int64, status int) error { return nil }

func (tx *stubTx) AcquireSequenceLock(ctx context.Context, key int64) error {
	tx.lockedKeys = append(tx.lockedKeys, key)
	return nil
}

func (tx *stubTx) MaxInvoiceSequence(ctx context.Context, scope SequenceScope) (int, error) {
	return tx.maxSeq, nil
}

func (tx *stubTx) AccountsExist(ctx context.Context, debitID, creditID int64) (bool, error) {
	return !tx.missingAcct, nil
}

func (tx *stubTx) InsertEntry(ctx context.Context, invoice string, in PostInput) (Entry, error) {
	entry := Entry{
		ID:              int64(len(tx.inserted) + 1),
		Invoice:         invoice,
		DateIssued:      in.DateIssued,
		DebitAccountID:  in.DebitAccountID,
		CreditAccountID: in.CreditAccountID,
		Amount:          in.Amount,
		FeeAmount:       in.FeeAmount,
		TrxType:         in.TrxType,
		Description:     in.Description,
		WarehouseID:     in.WarehouseID,
		UserID:          in.UserID,
	}
	tx.inserted = append(tx.inserted, entry)
	tx.maxSeq = InvoiceSequence(invoice)
	return entry, nil
}

func (tx *stubTx) MarkAccountsLocked(ctx context.Context, debitID, creditID int64) error {
	tx.lockedAccts = append(tx.lockedAccts, [2]int64{debitID, creditID})
	return nil
}

func (tx *stubTx) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	if tx.entry.ID == 0 {
		return Entry{}, ErrEntryNotFound
	}
	return tx.entry, nil
}

func (tx *stubTx) UpdateEntryFields(ctx context.Context, in UpdateInput) (Entry, error) {
	if tx.updateErr != nil {
		return Entry{}, tx.updateErr
	}
	tx.updated = &in
	updated := tx.entry
	if in.Amount != nil {
		updated.Amount = *in.Amount
	}
	if in.FeeAmount != nil {
		updated.FeeAmount = *in.FeeAmount
	}
	if in.Description != nil {
		updated.Description = *in.Description
	}
	return updated, nil
}

func (tx *stubTx) DeleteEntry(ctx context.Context, id int64) error {
	tx.deleted = append(tx.deleted, id)
	return nil
}

func (tx *stubTx) DeleteDependentsByInvoice(ctx context.Context, invoice string) (int64, error) {
	tx.cascadedInv = append(tx.cascadedInv, invoice)
	return 1, nil
}

func (tx *stubTx) AccountNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		names[id] = "Account"
	}
	return names, nil
}

func (tx *stubTx) RecordActivity(ctx context.Context, log shared.ActivityLog) error {
	tx.activity = append(tx.activity, log)
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPostAssignsFirstSequence(t *testing.T) {
	tx := &stubTx{}
	service := NewService(&stubRepo{tx: tx})
	asOf := day(2026, time.March, 7)

	entry, err := service.Post(context.Background(), PostInput{
		DateIssued:      asOf,
		DebitAccountID:  1,
		CreditAccountID: 2,
		Amount:          decimal.NewFromInt(50000),
		TrxType:         TrxTypeTransfer,
		WarehouseID:     1,
		UserID:          12,
	}, asOf)
	require.NoError(t, err)
	require.Equal(t, "JR.BK.07032026.12.0000001", entry.Invoice)
	require.Len(t, tx.lockedKeys, 1, "sequence lock acquired before reading max")
	require.Equal(t, JournalScope(12, asOf).LockKey(), tx.lockedKeys[0])
}

func TestPostIncrementsSequenceWithinScope(t *testing.T) {
	tx := &stubTx{maxSeq: 41}
	service := NewService(&stubRepo{tx: tx})
	asOf := day(2026, time.March, 7)
	in := PostInput{
		DateIssued:      asOf,
		DebitAccountID:  1,
		CreditAccountID: 2,
		Amount:          decimal.NewFromInt(1000),
		TrxType:         TrxTypeDeposit,
		UserID:          12,
	}

	first, err := service.Post(context.Background(), in, asOf)
	require.NoError(t, err)
	second, err := service.Post(context.Background(), in, asOf)
	require.NoError(t, err)

	require.Equal(t, 42, InvoiceSequence(first.Invoice))
	require.Equal(t, 43, InvoiceSequence(second.Invoice))
	require.NotEqual(t, first.Invoice, second.Invoice)
}

func TestPostRejectsNegativeAmount(t *testing.T) {
	service := NewService(&stubRepo{tx: &stubTx{}})
	_, err := service.Post(context.Background(), PostInput{
		DebitAccountID:  1,
		CreditAccountID: 2,
		Amount:          decimal.NewFromInt(-5),
		TrxType:         TrxTypeTransfer,
		UserID:          1,
	}, day(2026, time.March, 7))
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestPostRejectsUnknownAccount(t *testing.T) {
	tx := &stubTx{missingAcct: true}
	service := NewService(&stubRepo{tx: tx})
	_, err := service.Post(context.Background(), PostInput{
		DebitAccountID:  1,
		CreditAccountID: 99,
		Amount:          decimal.NewFromInt(5),
		TrxType:         TrxTypeTransfer,
		UserID:          1,
	}, day(2026, time.March, 7))
	require.True(t, errors.Is(err, ErrAccountMissing))
	require.Empty(t, tx.inserted)
}

func TestPostLocksReferencedAccounts(t *testing.T) {
	tx := &stubTx{}
	service := NewService(&stubRepo{tx: tx})
	asOf := day(2026, time.March, 7)
	_, err := service.Post(context.Background(), PostInput{
		DateIssued:      asOf,
		DebitAccountID:  4,
		CreditAccountID: 9,
		Amount:          decimal.NewFromInt(100),
		TrxType:         TrxTypeVoucher,
		UserID:          1,
	}, asOf)
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{4, 9}}, tx.lockedAccts)
}

func TestPostMutationSharesInvoiceAcrossLegs(t *testing.T) {
	tx := &stubTx{}
	service := NewService(&stubRepo{tx: tx})
	asOf := day(2026, time.March, 7)

	entries, err := service.PostMutation(context.Background(), MutationInput{
		DateIssued:       asOf,
		DebitAccountID:   1,
		CreditAccountID:  2,
		Amount:           decimal.NewFromInt(250000),
		FeeAmount:        decimal.NewFromInt(5000),
		FeeDebitAccount:  1,
		FeeCreditAccount: 30,
		Description:      "HQ to branch",
		WarehouseID:      1,
		UserID:           7,
	}, asOf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entries[0].Invoice, entries[1].Invoice)
}

func TestUpdatePastEntryWithoutOverrideFails(t *testing.T) {
	tx := &stubTx{entry: Entry{
		ID:         5,
		Invoice:    "JR.BK.06032026.12.0000001",
		DateIssued: day(2026, time.March, 6),
		Amount:     decimal.NewFromInt(50000),
	}}
	service := NewService(&stubRepo{tx: tx})
	amount := decimal.NewFromInt(60000)

	_, err := service.Update(context.Background(), UpdateInput{ID: 5, Amount: &amount}, day(2026, time.March, 7))
	require.True(t, errors.Is(err, shared.ErrPeriodClosed))
	require.Nil(t, tx.updated, "stored amount must stay unchanged")
	require.Empty(t, tx.activity, "no activity record on rejected update")
}

func TestUpdatePastEntryWithOverrideSucceeds(t *testing.T) {
	tx := &stubTx{entry: Entry{
		ID:         5,
		Invoice:    "JR.BK.06032026.12.0000001",
		DateIssued: day(2026, time.March, 6),
		Amount:     decimal.NewFromInt(50000),
	}}
	service := NewService(&stubRepo{tx: tx})
	ctx := shared.ContextWithActor(context.Background(), shared.Actor{UserID: 1, CanOverridePeriod: true})
	amount := decimal.NewFromInt(60000)

	updated, err := service.Update(ctx, UpdateInput{ID: 5, Amount: &amount}, day(2026, time.March, 7))
	require.NoError(t, err)
	require.True(t, updated.Amount.Equal(amount))
	require.Len(t, tx.activity, 1)
	require.Equal(t, "journal.update", tx.activity[0].Action)
	require.Contains(t, tx.activity[0].Meta, "amount")
}

func TestUpdateSameDayEntrySucceeds(t *testing.T) {
	asOf := day(2026, time.March, 7)
	tx := &stubTx{entry: Entry{ID: 5, Invoice: "JR.BK.07032026.12.0000001", DateIssued: asOf, Amount: decimal.NewFromInt(100)}}
	service := NewService(&stubRepo{tx: tx})
	amount := decimal.NewFromInt(150)

	_, err := service.Update(context.Background(), UpdateInput{ID: 5, Amount: &amount}, asOf)
	require.NoError(t, err)
	require.NotNil(t, tx.updated)
}

func TestUpdateActivityNamesOnlyChangedFields(t *testing.T) {
	asOf := day(2026, time.March, 7)
	tx := &stubTx{entry: Entry{
		ID:          5,
		Invoice:     "JR.BK.07032026.12.0000001",
		DateIssued:  asOf,
		Amount:      decimal.NewFromInt(100),
		Description: "old note",
	}}
	service := NewService(&stubRepo{tx: tx})
	note := "new note"

	_, err := service.Update(context.Background(), UpdateInput{ID: 5, Description: &note}, asOf)
	require.NoError(t, err)
	require.Len(t, tx.activity, 1)
	require.Equal(t, "Updated JR.BK.07032026.12.0000001: description", tx.activity[0].Description)
	require.NotContains(t, tx.activity[0].Meta, "amount")
	require.Contains(t, tx.activity[0].Meta, "description")
}

func TestUpdateRejectsEmptyFieldSet(t *testing.T) {
	service := NewService(&stubRepo{tx: &stubTx{}})
	_, err := service.Update(context.Background(), UpdateInput{ID: 5}, day(2026, time.March, 7))
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestDeletePastEntryWithoutOverrideFails(t *testing.T) {
	tx := &stubTx{entry: Entry{ID: 5, Invoice: "JR.BK.06032026.12.0000001", DateIssued: day(2026, time.March, 6)}}
	service := NewService(&stubRepo{tx: tx})

	err := service.Delete(context.Background(), 5, day(2026, time.March, 7))
	require.True(t, errors.Is(err, shared.ErrPeriodClosed))
	require.Empty(t, tx.deleted)
	require.Empty(t, tx.cascadedInv)
}

func TestDeleteCascadesSameInvoiceDependents(t *testing.T) {
	asOf := day(2026, time.March, 7)
	tx := &stubTx{entry: Entry{
		ID:              5,
		Invoice:         "JR.BK.07032026.12.0000003",
		DateIssued:      asOf,
		DebitAccountID:  1,
		CreditAccountID: 2,
		Amount:          decimal.NewFromInt(75000),
	}}
	service := NewService(&stubRepo{tx: tx})

	require.NoError(t, service.Delete(context.Background(), 5, asOf))
	require.Equal(t, []string{"JR.BK.07032026.12.0000003"}, tx.cascadedInv)
	require.Equal(t, []int64{5}, tx.deleted)
	require.Len(t, tx.activity, 1)
	require.Equal(t, "journal.delete", tx.activity[0].Action)
}
