package balance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cashbook-erp/cashbook/internal/coa"
	"github.com/cashbook-erp/cashbook/internal/journal"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// entryLedger derives activity totals from an in-memory entry list, so
// snapshot-based and full-replay paths see the same underlying journal.
type entryLedger struct {
	entries []journal.Entry
	calls   []string
}

func (l *entryLedger) ActivityTotals(_ context.Context, accountID int64, start, end time.Time) (Activity, error) {
	l.calls = append(l.calls, fmt.Sprintf("%d:%s..%s", accountID, start.Format("2006-01-02"), end.Format("2006-01-02")))
	a := Activity{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, e := range l.entries {
		if e.DateIssued.Before(start) || e.DateIssued.After(end) {
			continue
		}
		if e.DebitAccountID == accountID {
			a.Debit = a.Debit.Add(e.Amount)
		}
		if e.CreditAccountID == accountID {
			a.Credit = a.Credit.Add(e.Amount)
		}
	}
	return a, nil
}

func (l *entryLedger) ActivityTotalsBulk(ctx context.Context, accountIDs []int64, start, end time.Time) (map[int64]Activity, error) {
	totals := make(map[int64]Activity, len(accountIDs))
	for _, id := range accountIDs {
		a, err := l.ActivityTotals(ctx, id, start, end)
		if err != nil {
			return nil, err
		}
		totals[id] = a
	}
	return totals, nil
}

func (l *entryLedger) TrxTypeTotals(context.Context, int64, time.Time, time.Time) (map[string]TrxTypeTotal, error) {
	totals := make(map[string]TrxTypeTotal)
	for _, e := range l.entries {
		t := totals[e.TrxType]
		t.TrxType = e.TrxType
		t.Amount = t.Amount.Add(e.Amount)
		t.Count++
		totals[e.TrxType] = t
	}
	return totals, nil
}

type stubDirectory struct {
	accounts   map[int64]coa.Account
	categories map[int64]coa.Category
}

func (s *stubDirectory) GetAccount(_ context.Context, id int64) (coa.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return coa.Account{}, coa.ErrAccountNotFound
	}
	return a, nil
}

func (s *stubDirectory) GetCategory(_ context.Context, id int64) (coa.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return coa.Category{}, coa.ErrCategoryNotFound
	}
	return c, nil
}

func (s *stubDirectory) ListCategories(context.Context) ([]coa.Category, error) {
	out := make([]coa.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubDirectory) AccountsByCategories(_ context.Context, categoryIDs []int64, warehouseID *int64) ([]coa.Account, error) {
	wanted := make(map[int64]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		wanted[id] = true
	}
	var out []coa.Account
	for _, a := range s.accounts {
		if !wanted[a.CategoryID] {
			continue
		}
		if warehouseID != nil && (a.WarehouseID == nil || *a.WarehouseID != *warehouseID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type stubSnapshots struct {
	data   map[string]decimal.Decimal
	healed []string
	onHeal func(date time.Time)
}

func snapKey(accountID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", accountID, date.Format("2006-01-02"))
}

func (s *stubSnapshots) Ending(_ context.Context, accountID int64, date time.Time) (decimal.Decimal, bool, error) {
	v, ok := s.data[snapKey(accountID, date)]
	return v, ok, nil
}

func (s *stubSnapshots) EndingBulk(_ context.Context, accountIDs []int64, date time.Time) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	for _, id := range accountIDs {
		if v, ok := s.data[snapKey(id, date)]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *stubSnapshots) Heal(_ context.Context, date, _ time.Time) error {
	s.healed = append(s.healed, date.Format("2006-01-02"))
	if s.onHeal != nil {
		s.onHeal(date)
	}
	return nil
}

type stubJournals struct {
	entries []journal.Entry
}

func (s *stubJournals) EntriesForAccount(_ context.Context, accountID int64, start, end time.Time) ([]journal.Entry, error) {
	var out []journal.Entry
	for _, e := range s.entries {
		if e.DebitAccountID != accountID && e.CreditAccountID != accountID {
			continue
		}
		if e.DateIssued.Before(start) || e.DateIssued.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testCategories() CategoryConfig {
	return CategoryConfig{
		Cash:    []int64{1},
		Bank:    []int64{2},
		Revenue: []int64{27},
		Expense: []int64{33},
	}
}

func testDirectory() *stubDirectory {
	wh := int64(4)
	return &stubDirectory{
		accounts: map[int64]coa.Account{
			100: {ID: 100, Code: "10100-001", Name: "Petty Cash", CategoryID: 1, WarehouseID: &wh, StartingBalance: d("1000")},
			200: {ID: 200, Code: "10200-001", Name: "Main Bank", CategoryID: 2, WarehouseID: &wh, StartingBalance: d("5000")},
			300: {ID: 300, Code: "40100-001", Name: "Service Revenue", CategoryID: 27, StartingBalance: decimal.Zero},
		},
		categories: map[int64]coa.Category{
			1:  {ID: 1, Code: "10100", Name: "Cash", NormalSide: coa.NormalSideDebit},
			2:  {ID: 2, Code: "10200", Name: "Bank", NormalSide: coa.NormalSideDebit},
			27: {ID: 27, Code: "40100", Name: "Revenue", NormalSide: coa.NormalSideCredit},
		},
	}
}

func entry(id int64, date time.Time, debit, credit int64, amount string) journal.Entry {
	return journal.Entry{
		ID: id, DateIssued: date,
		DebitAccountID: debit, CreditAccountID: credit,
		Amount: d(amount), TrxType: journal.TrxTypeTransfer,
	}
}

func TestBalanceAsOfSnapshotPlusDayActivity(t *testing.T) {
	asOf := day(2026, time.March, 10)
	target := day(2026, time.March, 9)
	ledger := &entryLedger{entries: []journal.Entry{
		entry(1, day(2026, time.March, 9), 100, 300, "250"),
		entry(2, day(2026, time.March, 9), 300, 100, "40"),
		entry(3, day(2026, time.March, 8), 100, 300, "9999"), // prior day, already in snapshot
	}}
	snaps := &stubSnapshots{data: map[string]decimal.Decimal{
		snapKey(100, day(2026, time.March, 8)): d("1700"),
	}}
	svc := NewService(ledger, testDirectory(), snaps, &stubJournals{}, testCategories(), nil)

	got, err := svc.BalanceAsOf(context.Background(), 100, target, asOf)
	require.NoError(t, err)
	require.True(t, got.Equal(d("1910")), "got %s", got) // 1700 + 250 - 40
	require.Empty(t, snaps.healed)
	require.Len(t, ledger.calls, 1, "only the target day is replayed")
	require.Equal(t, "100:2026-03-09..2026-03-09", ledger.calls[0])
}

func TestBalanceAsOfHealsMissingSnapshot(t *testing.T) {
	asOf := day(2026, time.March, 10)
	ledger := &entryLedger{entries: []journal.Entry{
		entry(1, day(2026, time.March, 9), 100, 300, "100"),
	}}
	snaps := &stubSnapshots{data: map[string]decimal.Decimal{}}
	snaps.onHeal = func(date time.Time) {
		snaps.data[snapKey(100, date)] = d("1000")
	}
	svc := NewService(ledger, testDirectory(), snaps, &stubJournals{}, testCategories(), nil)

	got, err := svc.BalanceAsOf(context.Background(), 100, day(2026, time.March, 9), asOf)
	require.NoError(t, err)
	require.Equal(t, []string{"2026-03-08"}, snaps.healed)
	require.True(t, got.Equal(d("1100")), "got %s", got)
}

func TestBalanceAsOfReadOnlyFailsInsteadOfHealing(t *testing.T) {
	snaps := &stubSnapshots{data: map[string]decimal.Decimal{}}
	svc := NewService(&entryLedger{}, testDirectory(), snaps, &stubJournals{}, testCategories(), nil)

	_, err := svc.BalanceAsOfReadOnly(context.Background(), 100, day(2026, time.March, 9), day(2026, time.March, 10))
	require.ErrorIs(t, err, shared.ErrConsistency)
	require.Empty(t, snaps.healed)
}

func TestBalanceAsOfFutureDateReplaysFromEpoch(t *testing.T) {
	asOf := day(2026, time.March, 10)
	ledger := &entryLedger{entries: []journal.Entry{
		entry(1, day(2026, time.March, 1), 100, 300, "500"),
	}}
	snaps := &stubSnapshots{data: map[string]decimal.Decimal{}}
	svc := NewService(ledger, testDirectory(), snaps, &stubJournals{}, testCategories(), nil)

	// Tomorrow's prior day is today: no snapshot can exist yet, so the
	// balance must come from a full replay and never touch the cache.
	got, err := svc.BalanceAsOf(context.Background(), 100, day(2026, time.March, 11), asOf)
	require.NoError(t, err)
	require.True(t, got.Equal(d("1500")), "got %s", got)
	require.Empty(t, snaps.healed)
}

func TestSnapshotAndReplayAgree(t *testing.T) {
	// The same ledger served via snapshot+delta and via full replay must
	// produce identical balances.
	asOf := day(2026, time.March, 10)
	entries := []journal.Entry{
		entry(1, day(2026, time.March, 2), 100, 300, "700"),
		entry(2, day(2026, time.March, 5), 300, 100, "150"),
		entry(3, day(2026, time.March, 9), 100, 300, "25"),
	}
	ledger := &entryLedger{entries: entries}
	ctx := context.Background()

	replaySvc := NewService(ledger, testDirectory(), &stubSnapshots{data: map[string]decimal.Decimal{}}, &stubJournals{}, testCategories(), nil)
	// No usable snapshot path for a future target date: pure replay.
	replayed, err := replaySvc.BalanceAsOf(ctx, 100, day(2026, time.March, 11), day(2026, time.March, 9))
	require.NoError(t, err)

	// Snapshot for March 8 built from the same history.
	activity, err := ledger.ActivityTotals(ctx, 100, shared.LedgerEpoch, shared.EndOfDay(day(2026, time.March, 8)))
	require.NoError(t, err)
	snapped, err := Ending(coa.NormalSideDebit, d("1000"), activity)
	require.NoError(t, err)
	snaps := &stubSnapshots{data: map[string]decimal.Decimal{
		snapKey(100, day(2026, time.March, 8)): snapped,
	}}
	snapSvc := NewService(ledger, testDirectory(), snaps, &stubJournals{}, testCategories(), nil)

	// Activity after March 11 is empty, so both answers cover the same range.
	viaSnapshot, err := snapSvc.BalanceAsOf(ctx, 100, day(2026, time.March, 9), asOf)
	require.NoError(t, err)
	require.True(t, replayed.Equal(viaSnapshot), "replay %s vs snapshot %s", replayed, viaSnapshot)
}

func TestBalancesForWarehouseSplitsCashAndBank(t *testing.T) {
	asOf := day(2026, time.March, 10)
	ledger := &entryLedger{entries: []journal.Entry{
		entry(1, day(2026, time.March, 9), 100, 300, "200"),
		entry(2, day(2026, time.March, 9), 200, 300, "1000"),
	}}
	snaps := &stubSnapshots{data: map[string]decimal.Decimal{
		snapKey(100, day(2026, time.March, 8)): d("1000"),
		snapKey(200, day(2026, time.March, 8)): d("5000"),
	}}
	svc := NewService(ledger, testDirectory(), snaps, &stubJournals{}, testCategories(), nil)

	wh := int64(4)
	got, err := svc.BalancesForWarehouse(context.Background(), &wh, day(2026, time.March, 9), asOf)
	require.NoError(t, err)
	require.Len(t, got.Accounts, 2)
	require.True(t, got.TotalCash.Equal(d("1200")), "cash %s", got.TotalCash)
	require.True(t, got.TotalBank.Equal(d("6000")), "bank %s", got.TotalBank)
}

func TestBalancesForWarehouseHealsWholeDayOnce(t *testing.T) {
	asOf := day(2026, time.March, 10)
	ledger := &entryLedger{}
	snaps := &stubSnapshots{data: map[string]decimal.Decimal{
		snapKey(100, day(2026, time.March, 8)): d("1000"),
	}}
	snaps.onHeal = func(date time.Time) {
		snaps.data[snapKey(200, date)] = d("5000")
	}
	svc := NewService(ledger, testDirectory(), snaps, &stubJournals{}, testCategories(), nil)

	wh := int64(4)
	got, err := svc.BalancesForWarehouse(context.Background(), &wh, day(2026, time.March, 9), asOf)
	require.NoError(t, err)
	require.Equal(t, []string{"2026-03-08"}, snaps.healed)
	require.True(t, got.TotalBank.Equal(d("5000")), "bank %s", got.TotalBank)
}

func TestBalancesForWarehouseFailsWhenHealLeavesHoles(t *testing.T) {
	// A heal that does not produce every account's snapshot must fail the
	// whole read, never serve balances built on zero openings.
	asOf := day(2026, time.March, 10)
	snaps := &stubSnapshots{data: map[string]decimal.Decimal{}}
	svc := NewService(&entryLedger{}, testDirectory(), snaps, &stubJournals{}, testCategories(), nil)

	wh := int64(4)
	_, err := svc.BalancesForWarehouse(context.Background(), &wh, day(2026, time.March, 9), asOf)
	require.ErrorIs(t, err, shared.ErrConsistency)
	require.Equal(t, []string{"2026-03-08"}, snaps.healed, "heal attempted exactly once")
}

func TestHistoryRunningBalances(t *testing.T) {
	entries := []journal.Entry{
		entry(1, day(2026, time.February, 20), 100, 300, "500"), // before range
		entry(2, day(2026, time.March, 2), 100, 300, "300"),
		entry(3, day(2026, time.March, 4), 300, 100, "120"),
	}
	ledger := &entryLedger{entries: entries}
	svc := NewService(ledger, testDirectory(), &stubSnapshots{}, &stubJournals{entries: entries}, testCategories(), nil)

	history, err := svc.History(context.Background(), 100, day(2026, time.March, 1), day(2026, time.March, 31))
	require.NoError(t, err)
	require.True(t, history.Opening.Equal(d("1500")), "opening %s", history.Opening) // 1000 starting + 500
	require.Len(t, history.Lines, 2)
	require.True(t, history.Lines[0].Balance.Equal(d("1800")))
	require.True(t, history.Lines[1].Balance.Equal(d("1680")))
	require.True(t, history.Closing.Equal(d("1680")), "closing %s", history.Closing)
}

func TestProfitAndLossUsesRangeActivityOnly(t *testing.T) {
	ledger := &entryLedger{entries: []journal.Entry{
		entry(1, day(2026, time.February, 1), 100, 300, "9999"), // outside range
		entry(2, day(2026, time.March, 3), 100, 300, "400"),
		entry(3, day(2026, time.March, 5), 100, 300, "100"),
	}}
	svc := NewService(ledger, testDirectory(), &stubSnapshots{}, &stubJournals{}, testCategories(), nil)

	report, err := svc.ProfitAndLoss(context.Background(), nil, day(2026, time.March, 1), day(2026, time.March, 31))
	require.NoError(t, err)
	require.True(t, report.Revenue.Total.Equal(d("500")), "revenue %s", report.Revenue.Total)
	require.True(t, report.Net.Equal(d("500")), "net %s", report.Net)
}
