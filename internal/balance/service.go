package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/coa"
	"github.com/cashbook-erp/cashbook/internal/journal"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// LedgerReader reads aggregate journal activity.
type LedgerReader interface {
	ActivityTotals(ctx context.Context, accountID int64, start, end time.Time) (Activity, error)
	ActivityTotalsBulk(ctx context.Context, accountIDs []int64, start, end time.Time) (map[int64]Activity, error)
	TrxTypeTotals(ctx context.Context, warehouseID int64, start, end time.Time) (map[string]TrxTypeTotal, error)
}

// AccountDirectory resolves accounts and their categories.
type AccountDirectory interface {
	GetAccount(ctx context.Context, accountID int64) (coa.Account, error)
	GetCategory(ctx context.Context, categoryID int64) (coa.Category, error)
	ListCategories(ctx context.Context) ([]coa.Category, error)
	AccountsByCategories(ctx context.Context, categoryIDs []int64, warehouseID *int64) ([]coa.Account, error)
}

// SnapshotSource serves cached daily ending balances and can heal a
// missing day on demand.
type SnapshotSource interface {
	Ending(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, bool, error)
	EndingBulk(ctx context.Context, accountIDs []int64, date time.Time) (map[int64]decimal.Decimal, error)
	Heal(ctx context.Context, date, asOf time.Time) error
}

// Journals lists the raw entries behind a mutation history.
type Journals interface {
	EntriesForAccount(ctx context.Context, accountID int64, start, end time.Time) ([]journal.Entry, error)
}

// CategoryConfig maps account-category ids to report partitions. The
// partitions are configuration, never logic: every roll-up below runs the
// same per-account formula over a different id set.
type CategoryConfig struct {
	Cash        []int64
	Bank        []int64
	Assets      []int64
	Liabilities []int64
	Equity      []int64
	Revenue     []int64
	Cost        []int64
	Expense     []int64
}

// CashAndBank returns the combined cash/bank category set.
func (c CategoryConfig) CashAndBank() []int64 {
	out := make([]int64, 0, len(c.Cash)+len(c.Bank))
	out = append(out, c.Cash...)
	return append(out, c.Bank...)
}

// Service computes point-in-time and as-of balances. BalanceAsOf prefers
// the previous day's snapshot plus one day of activity and only replays
// the full journal history when no usable snapshot exists.
type Service struct {
	ledger     LedgerReader
	accounts   AccountDirectory
	snapshots  SnapshotSource
	journals   Journals
	categories CategoryConfig
	cache      *Cache
	logger     *slog.Logger
}

// NewService constructs the balance engine.
func NewService(ledger LedgerReader, accounts AccountDirectory, snapshots SnapshotSource, journals Journals, categories CategoryConfig, logger *slog.Logger) *Service {
	return &Service{
		ledger:     ledger,
		accounts:   accounts,
		snapshots:  snapshots,
		journals:   journals,
		categories: categories,
		logger:     logger,
	}
}

// WithCache wires the read-side cache for warehouse dashboards.
func (s *Service) WithCache(cache *Cache) {
	s.cache = cache
}

// PointInTime computes the ending balance for one account from its
// configured starting balance plus signed activity inside [start, end].
func (s *Service) PointInTime(ctx context.Context, accountID int64, start, end time.Time) (decimal.Decimal, error) {
	account, side, err := s.resolve(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	activity, err := s.ledger.ActivityTotals(ctx, accountID, shared.DateOnly(start), shared.EndOfDay(end))
	if err != nil {
		return decimal.Zero, err
	}
	return Ending(side, account.StartingBalance, activity)
}

// BalanceAsOf computes the account balance at end of the given day,
// preferring snapshot(date-1) plus that day's activity. A missing
// prior-day snapshot is healed synchronously and re-read before the
// balance is served; this mutation is a documented side effect. Callers
// that must not write use BalanceAsOfReadOnly.
func (s *Service) BalanceAsOf(ctx context.Context, accountID int64, date, asOf time.Time) (decimal.Decimal, error) {
	return s.balanceAsOf(ctx, accountID, date, asOf, true)
}

// BalanceAsOfReadOnly is the pure-read variant: a missing prior-day
// snapshot surfaces as a consistency failure instead of being healed.
func (s *Service) BalanceAsOfReadOnly(ctx context.Context, accountID int64, date, asOf time.Time) (decimal.Decimal, error) {
	return s.balanceAsOf(ctx, accountID, date, asOf, false)
}

func (s *Service) balanceAsOf(ctx context.Context, accountID int64, date, asOf time.Time, heal bool) (decimal.Decimal, error) {
	account, side, err := s.resolve(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	day := shared.DateOnly(date)
	prev := day.AddDate(0, 0, -1)
	if !snapshotUsable(prev, asOf) {
		activity, err := s.ledger.ActivityTotals(ctx, accountID, shared.LedgerEpoch, shared.EndOfDay(day))
		if err != nil {
			return decimal.Zero, err
		}
		return Ending(side, account.StartingBalance, activity)
	}
	opening, ok, err := s.snapshots.Ending(ctx, accountID, prev)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		if !heal {
			return decimal.Zero, fmt.Errorf("balance: snapshot for account %d on %s missing: %w",
				accountID, prev.Format("2006-01-02"), shared.ErrConsistency)
		}
		if s.logger != nil {
			s.logger.Info("healing missing snapshot",
				slog.Int64("account_id", accountID), slog.String("date", prev.Format("2006-01-02")))
		}
		if err := s.snapshots.Heal(ctx, prev, asOf); err != nil {
			return decimal.Zero, fmt.Errorf("balance: heal snapshot %s: %w: %w", prev.Format("2006-01-02"), err, shared.ErrConsistency)
		}
		opening, ok, err = s.snapshots.Ending(ctx, accountID, prev)
		if err != nil {
			return decimal.Zero, err
		}
		if !ok {
			return decimal.Zero, fmt.Errorf("balance: snapshot for account %d on %s absent after heal: %w",
				accountID, prev.Format("2006-01-02"), shared.ErrConsistency)
		}
	}
	activity, err := s.ledger.ActivityTotals(ctx, accountID, day, shared.EndOfDay(day))
	if err != nil {
		return decimal.Zero, err
	}
	return Ending(side, opening, activity)
}

// AccountBalance pairs an account with its computed balance.
type AccountBalance struct {
	Account coa.Account
	Balance decimal.Decimal
}

// WarehouseBalances is the cash/bank dashboard for one branch (or all).
type WarehouseBalances struct {
	Accounts  []AccountBalance
	TotalCash decimal.Decimal
	TotalBank decimal.Decimal
}

// BalancesForWarehouse computes cash and bank balances for one branch, or
// for every branch when warehouseID is nil, as of end of the given day.
// Results are served from the read cache when fresh.
func (s *Service) BalancesForWarehouse(ctx context.Context, warehouseID *int64, date, asOf time.Time) (WarehouseBalances, error) {
	day := shared.DateOnly(date)
	cacheKey := warehouseCacheKey(warehouseID, day)
	if s.cache != nil {
		var cached WarehouseBalances
		if ok := s.cache.Get(ctx, cacheKey, &cached); ok {
			return cached, nil
		}
	}
	accounts, err := s.accounts.AccountsByCategories(ctx, s.categories.CashAndBank(), warehouseID)
	if err != nil {
		return WarehouseBalances{}, err
	}
	sides, err := s.normalSides(ctx)
	if err != nil {
		return WarehouseBalances{}, err
	}
	result, err := s.computeBalances(ctx, accounts, sides, day, asOf)
	if err != nil {
		return WarehouseBalances{}, err
	}
	out := WarehouseBalances{Accounts: result, TotalCash: decimal.Zero, TotalBank: decimal.Zero}
	cashSet := idSet(s.categories.Cash)
	bankSet := idSet(s.categories.Bank)
	for _, ab := range result {
		switch {
		case cashSet[ab.Account.CategoryID]:
			out.TotalCash = out.TotalCash.Add(ab.Balance)
		case bankSet[ab.Account.CategoryID]:
			out.TotalBank = out.TotalBank.Add(ab.Balance)
		}
	}
	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, out)
	}
	return out, nil
}

// computeBalances applies the per-account formula to a set of accounts,
// snapshot-plus-delta when a usable prior-day snapshot exists, full
// replay otherwise. Any account missing a snapshot triggers one heal of
// the whole prior day before the set is re-read.
func (s *Service) computeBalances(ctx context.Context, accounts []coa.Account, sides map[int64]coa.NormalSide, day, asOf time.Time) ([]AccountBalance, error) {
	if len(accounts) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}
	prev := day.AddDate(0, 0, -1)
	if !snapshotUsable(prev, asOf) {
		totals, err := s.ledger.ActivityTotalsBulk(ctx, ids, shared.LedgerEpoch, shared.EndOfDay(day))
		if err != nil {
			return nil, err
		}
		return s.applyFormula(accounts, sides, func(a coa.Account) decimal.Decimal { return a.StartingBalance }, totals)
	}
	openings, err := s.snapshots.EndingBulk(ctx, ids, prev)
	if err != nil {
		return nil, err
	}
	if len(openings) < len(ids) {
		if err := s.snapshots.Heal(ctx, prev, asOf); err != nil {
			return nil, fmt.Errorf("balance: heal snapshot %s: %w: %w", prev.Format("2006-01-02"), err, shared.ErrConsistency)
		}
		openings, err = s.snapshots.EndingBulk(ctx, ids, prev)
		if err != nil {
			return nil, err
		}
	}
	for _, id := range ids {
		if _, ok := openings[id]; !ok {
			return nil, fmt.Errorf("balance: snapshot for account %d on %s absent after heal: %w",
				id, prev.Format("2006-01-02"), shared.ErrConsistency)
		}
	}
	totals, err := s.ledger.ActivityTotalsBulk(ctx, ids, day, shared.EndOfDay(day))
	if err != nil {
		return nil, err
	}
	return s.applyFormula(accounts, sides, func(a coa.Account) decimal.Decimal {
		return openings[a.ID]
	}, totals)
}

func (s *Service) applyFormula(accounts []coa.Account, sides map[int64]coa.NormalSide, opening func(coa.Account) decimal.Decimal, totals map[int64]Activity) ([]AccountBalance, error) {
	result := make([]AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		side, ok := sides[account.CategoryID]
		if !ok {
			return nil, fmt.Errorf("balance: account %d has no resolvable normal side: %w", account.ID, shared.ErrConsistency)
		}
		ending, err := Ending(side, opening(account), totals[account.ID])
		if err != nil {
			return nil, err
		}
		result = append(result, AccountBalance{Account: account, Balance: ending})
	}
	return result, nil
}

// HistoryLine is one journal entry with the running balance after it.
type HistoryLine struct {
	Entry   journal.Entry
	Balance decimal.Decimal
}

// MutationHistory is the account statement for a date range.
type MutationHistory struct {
	Opening decimal.Decimal
	Lines   []HistoryLine
	Closing decimal.Decimal
}

// History returns the mutation history for one account: the opening
// balance going into start, every entry in range with a running balance,
// and the closing balance.
func (s *Service) History(ctx context.Context, accountID int64, start, end time.Time) (MutationHistory, error) {
	account, side, err := s.resolve(ctx, accountID)
	if err != nil {
		return MutationHistory{}, err
	}
	openingActivity, err := s.ledger.ActivityTotals(ctx, accountID, shared.LedgerEpoch, shared.EndOfDay(shared.DateOnly(start).AddDate(0, 0, -1)))
	if err != nil {
		return MutationHistory{}, err
	}
	opening, err := Ending(side, account.StartingBalance, openingActivity)
	if err != nil {
		return MutationHistory{}, err
	}
	entries, err := s.journals.EntriesForAccount(ctx, accountID, shared.DateOnly(start), shared.EndOfDay(end))
	if err != nil {
		return MutationHistory{}, err
	}
	history := MutationHistory{Opening: opening, Closing: opening}
	for _, entry := range entries {
		delta := entryDelta(side, accountID, entry)
		history.Closing = history.Closing.Add(delta)
		history.Lines = append(history.Lines, HistoryLine{Entry: entry, Balance: history.Closing})
	}
	return history, nil
}

// entryDelta is the signed effect of one entry on one account's balance.
func entryDelta(side coa.NormalSide, accountID int64, entry journal.Entry) decimal.Decimal {
	var activity Activity
	activity.Debit = decimal.Zero
	activity.Credit = decimal.Zero
	if entry.DebitAccountID == accountID {
		activity.Debit = entry.Amount
	}
	if entry.CreditAccountID == accountID {
		activity.Credit = activity.Credit.Add(entry.Amount)
	}
	delta, _ := Ending(side, decimal.Zero, activity)
	return delta
}

func (s *Service) resolve(ctx context.Context, accountID int64) (coa.Account, coa.NormalSide, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return coa.Account{}, "", err
	}
	category, err := s.accounts.GetCategory(ctx, account.CategoryID)
	if err != nil {
		return coa.Account{}, "", fmt.Errorf("balance: account %d category missing: %w", accountID, shared.ErrConsistency)
	}
	if !category.NormalSide.Valid() {
		return coa.Account{}, "", fmt.Errorf("balance: account %d has no resolvable normal side: %w", accountID, shared.ErrConsistency)
	}
	return account, category.NormalSide, nil
}

func (s *Service) normalSides(ctx context.Context) (map[int64]coa.NormalSide, error) {
	categories, err := s.accounts.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	sides := make(map[int64]coa.NormalSide, len(categories))
	for _, category := range categories {
		sides[category.ID] = category.NormalSide
	}
	return sides, nil
}

// snapshotUsable reports whether a prior-day snapshot may exist: the day
// must be before asOf's calendar day (snapshots are never created for the
// current or future days) and on or after the ledger epoch.
func snapshotUsable(prev, asOf time.Time) bool {
	return prev.Before(shared.DateOnly(asOf)) && !prev.Before(shared.LedgerEpoch)
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func warehouseCacheKey(warehouseID *int64, day time.Time) string {
	wh := "all"
	if warehouseID != nil {
		wh = fmt.Sprintf("%d", *warehouseID)
	}
	return fmt.Sprintf("warehouse:%s:%s", wh, day.Format("2006-01-02"))
}
