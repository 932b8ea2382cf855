package snapshot

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cashbook-erp/cashbook/internal/balance"
	"github.com/cashbook-erp/cashbook/internal/coa"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Directory lists the accounts and categories the builder materializes.
type Directory interface {
	AllAccounts(ctx context.Context) ([]coa.Account, error)
	ListCategories(ctx context.Context) ([]coa.Category, error)
}

// Ledger reads aggregate journal activity for the builder.
type Ledger interface {
	ActivityTotals(ctx context.Context, accountID int64, start, end time.Time) (balance.Activity, error)
	ActivityTotalsBulk(ctx context.Context, accountIDs []int64, start, end time.Time) (map[int64]balance.Activity, error)
}

// Store is the persistence surface the builder writes through.
type Store interface {
	Ending(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, bool, error)
	EndingBulk(ctx context.Context, accountIDs []int64, date time.Time) (map[int64]decimal.Decimal, error)
	UpsertBulk(ctx context.Context, date time.Time, endings map[int64]decimal.Decimal) error
}

// Service materializes daily ending balances. Ensure is idempotent: the
// snapshot table is a cache over the journal, so re-running a day
// overwrites rows with the same derived values.
type Service struct {
	store    Store
	accounts Directory
	ledger   Ledger
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the snapshot builder.
func NewService(store Store, accounts Directory, ledger Ledger, logger *slog.Logger) *Service {
	return &Service{store: store, accounts: accounts, ledger: ledger, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ending serves one materialized balance.
func (s *Service) Ending(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, bool, error) {
	return s.store.Ending(ctx, accountID, shared.DateOnly(date))
}

// EndingBulk serves materialized balances for a set of accounts.
func (s *Service) EndingBulk(ctx context.Context, accountIDs []int64, date time.Time) (map[int64]decimal.Decimal, error) {
	return s.store.EndingBulk(ctx, accountIDs, shared.DateOnly(date))
}

// Heal materializes one missing day on behalf of a balance read.
func (s *Service) Heal(ctx context.Context, date, asOf time.Time) error {
	return s.Ensure(ctx, date, asOf)
}

// Ensure materializes ending balances for every account on the given
// day. Only closed days qualify: the day must be strictly before asOf's
// calendar day. Each balance is the prior day's snapshot plus one day of
// activity; accounts without a prior-day row fall back to a full replay
// from the ledger epoch.
func (s *Service) Ensure(ctx context.Context, date, asOf time.Time) error {
	day := shared.DateOnly(date)
	if !day.Before(shared.DateOnly(asOf)) {
		return ErrOpenDay
	}
	if day.Before(shared.LedgerEpoch) {
		return ErrBeforeEpoch
	}

	accounts, err := s.accounts.AllAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return nil
	}
	sides, err := s.normalSides(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}

	openings := map[int64]decimal.Decimal{}
	prev := day.AddDate(0, 0, -1)
	if !prev.Before(shared.LedgerEpoch) {
		openings, err = s.store.EndingBulk(ctx, ids, prev)
		if err != nil {
			return err
		}
	}

	// Accounts with no prior-day row replay their full history. The
	// replays are independent, so fan out.
	var missing []coa.Account
	for _, account := range accounts {
		if _, ok := openings[account.ID]; !ok {
			missing = append(missing, account)
		}
	}
	if len(missing) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		replayEnd := shared.EndOfDay(prev)
		for _, account := range missing {
			account := account
			g.Go(func() error {
				opening := account.StartingBalance
				if !prev.Before(shared.LedgerEpoch) {
					activity, err := s.ledger.ActivityTotals(gctx, account.ID, shared.LedgerEpoch, replayEnd)
					if err != nil {
						return err
					}
					opening, err = balance.Ending(sides[account.CategoryID], account.StartingBalance, activity)
					if err != nil {
						return err
					}
				}
				mu.Lock()
				openings[account.ID] = opening
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	dayActivity, err := s.ledger.ActivityTotalsBulk(ctx, ids, day, shared.EndOfDay(day))
	if err != nil {
		return err
	}
	endings := make(map[int64]decimal.Decimal, len(accounts))
	for _, account := range accounts {
		ending, err := balance.Ending(sides[account.CategoryID], openings[account.ID], dayActivity[account.ID])
		if err != nil {
			return err
		}
		endings[account.ID] = ending
	}
	if err := s.store.UpsertBulk(ctx, day, endings); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("materialized daily balances",
			slog.String("date", day.Format("2006-01-02")), slog.Int("accounts", len(endings)))
	}
	return nil
}

// EnsureRange materializes every closed day in [start, end] in order.
// Days must run oldest first: each one reads the previous day's rows.
func (s *Service) EnsureRange(ctx context.Context, start, end time.Time, asOf time.Time) error {
	for day := shared.DateOnly(start); !day.After(shared.DateOnly(end)); day = day.AddDate(0, 0, 1) {
		if !day.Before(shared.DateOnly(asOf)) {
			return nil
		}
		if err := s.Ensure(ctx, day, asOf); err != nil {
			return err
		}
	}
	return nil
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
