package receivable

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cashbook-erp/cashbook/internal/journal"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type stubRepo struct {
	rows   map[int64]Receivable
	nextID int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{rows: map[int64]Receivable{}}
}

func (s *stubRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &stubTx{repo: s})
}

func (s *stubRepo) Insert(_ context.Context, in CreateInput) (Receivable, error) {
	s.nextID++
	rec := Receivable{
		ID: s.nextID, EmployeeID: in.EmployeeID, EmployeeName: in.EmployeeName,
		Amount: in.Amount, Paid: decimal.Zero, Status: StatusOpen,
		Description: in.Description, WarehouseID: in.WarehouseID,
	}
	s.rows[rec.ID] = rec
	return rec, nil
}

func (s *stubRepo) Get(_ context.Context, id int64) (Receivable, error) {
	rec, ok := s.rows[id]
	if !ok {
		return Receivable{}, ErrReceivableNotFound
	}
	return rec, nil
}

func (s *stubRepo) List(context.Context, ListFilter) ([]Receivable, error) {
	var out []Receivable
	for _, rec := range s.rows {
		out = append(out, rec)
	}
	return out, nil
}

func (s *stubRepo) Delete(_ context.Context, id int64) error {
	if _, ok := s.rows[id]; !ok {
		return ErrReceivableNotFound
	}
	delete(s.rows, id)
	return nil
}

type stubTx struct {
	repo *stubRepo
}

func (t *stubTx) GetForUpdate(ctx context.Context, id int64) (Receivable, error) {
	return t.repo.Get(ctx, id)
}

func (t *stubTx) ApplyPayment(_ context.Context, id int64, paid decimal.Decimal, paymentCount, status int) (Receivable, error) {
	rec, ok := t.repo.rows[id]
	if !ok {
		return Receivable{}, ErrReceivableNotFound
	}
	rec.Paid = paid
	rec.PaymentCount = paymentCount
	rec.Status = status
	t.repo.rows[id] = rec
	return rec, nil
}

type stubLedger struct {
	posted []journal.PostInput
}

func (s *stubLedger) Post(_ context.Context, in journal.PostInput, _ time.Time) (journal.Entry, error) {
	s.posted = append(s.posted, in)
	return journal.Entry{ID: int64(len(s.posted)), Invoice: "JR.BK.09032026.7.0000001"}, nil
}

func fixture(t *testing.T) (*Service, *stubRepo, *stubLedger) {
	t.Helper()
	repo := newStubRepo()
	ledger := &stubLedger{}
	svc := NewService(repo, ledger)
	_, err := svc.Create(context.Background(), CreateInput{
		EmployeeID: 9, EmployeeName: "Dana Putra", Amount: d("1000"), WarehouseID: 4,
	})
	require.NoError(t, err)
	return svc, repo, ledger
}

func TestPayAppliesInstallmentAndPostsJournal(t *testing.T) {
	svc, repo, ledger := fixture(t)
	asOf := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)

	updated, err := svc.Pay(context.Background(), PayInput{
		ReceivableID: 1, Amount: d("400"), CashAccountID: 100, ReceivableAccountID: 210, UserID: 7,
	}, asOf)
	require.NoError(t, err)
	require.True(t, updated.Paid.Equal(d("400")))
	require.Equal(t, 1, updated.PaymentCount)
	require.Equal(t, StatusOpen, updated.Status)

	require.Len(t, ledger.posted, 1)
	posted := ledger.posted[0]
	require.Equal(t, journal.TrxTypeReceivable, posted.TrxType)
	require.True(t, posted.Amount.Equal(d("400")))
	require.Equal(t, int64(100), posted.DebitAccountID)
	require.Equal(t, int64(210), posted.CreditAccountID)
	require.Equal(t, int64(4), posted.WarehouseID, "warehouse inherited from the receivable")

	stored := repo.rows[1]
	require.True(t, stored.Remaining().Equal(d("600")))
}

func TestPayRejectsOverpayment(t *testing.T) {
	svc, repo, ledger := fixture(t)

	_, err := svc.Pay(context.Background(), PayInput{
		ReceivableID: 1, Amount: d("1001"), CashAccountID: 100, ReceivableAccountID: 210, UserID: 7,
	}, time.Now())
	require.ErrorIs(t, err, shared.ErrInsufficientFunds)
	require.Empty(t, ledger.posted)
	require.True(t, repo.rows[1].Paid.IsZero(), "no partial application on rejection")
}

func TestPaySettlesOnExactRemainder(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()
	asOf := time.Now()

	_, err := svc.Pay(ctx, PayInput{ReceivableID: 1, Amount: d("600"), CashAccountID: 100, ReceivableAccountID: 210, UserID: 7}, asOf)
	require.NoError(t, err)
	updated, err := svc.Pay(ctx, PayInput{ReceivableID: 1, Amount: d("400"), CashAccountID: 100, ReceivableAccountID: 210, UserID: 7}, asOf)
	require.NoError(t, err)
	require.Equal(t, StatusSettled, updated.Status)
	require.Equal(t, 2, updated.PaymentCount)
	require.True(t, updated.Remaining().IsZero())
}

func TestPayRejectsSettledRow(t *testing.T) {
	svc, _, ledger := fixture(t)
	ctx := context.Background()

	_, err := svc.Pay(ctx, PayInput{ReceivableID: 1, Amount: d("1000"), CashAccountID: 100, ReceivableAccountID: 210, UserID: 7}, time.Now())
	require.NoError(t, err)

	_, err = svc.Pay(ctx, PayInput{ReceivableID: 1, Amount: d("1"), CashAccountID: 100, ReceivableAccountID: 210, UserID: 7}, time.Now())
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, ledger.posted, 1)
}

func TestDeleteRefusesRowsWithPayments(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()

	_, err := svc.Pay(ctx, PayInput{ReceivableID: 1, Amount: d("100"), CashAccountID: 100, ReceivableAccountID: 210, UserID: 7}, time.Now())
	require.NoError(t, err)

	err = svc.Delete(ctx, 1)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, &stubLedger{})

	_, err := svc.Create(context.Background(), CreateInput{EmployeeName: "Dana Putra", Amount: decimal.Zero})
	require.ErrorIs(t, err, shared.ErrValidation)
}
