package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cashbook-erp/cashbook/internal/balance"
	"github.com/cashbook-erp/cashbook/internal/coa"
	jobmetrics "github.com/cashbook-erp/cashbook/internal/jobs"
	"github.com/cashbook-erp/cashbook/internal/shared"
	"github.com/cashbook-erp/cashbook/internal/snapshot"
)

// IntegrityDeps collects the read surfaces the integrity scan needs.
type IntegrityDeps struct {
	Accounts snapshot.Directory
	Ledger   snapshot.Ledger
	Store    snapshot.Store
}

// NewLedgerIntegrityHandler cross-checks yesterday's materialized
// balances against a full journal replay. Divergent or missing rows are
// logged and counted; the job itself never repairs anything, repairs go
// through the snapshot rebuild task.
func NewLedgerIntegrityHandler(deps IntegrityDeps, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LedgerIntegrityPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track("ledger_integrity")
		err := scan(ctx, deps, metrics, logger)
		return tracker.End(err)
	}
}

func scan(ctx context.Context, deps IntegrityDeps, metrics *jobmetrics.Metrics, logger *slog.Logger) error {
	day := shared.DateOnly(time.Now().UTC()).AddDate(0, 0, -1)
	if day.Before(shared.LedgerEpoch) {
		return nil
	}
	accounts, err := deps.Accounts.AllAccounts(ctx)
	if err != nil {
		return err
	}
	categories, err := deps.Accounts.ListCategories(ctx)
	if err != nil {
		return err
	}
	sides := make(map[int64]coa.NormalSide, len(categories))
	for _, category := range categories {
		sides[category.ID] = category.NormalSide
	}
	ids := make([]int64, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}
	stored, err := deps.Store.EndingBulk(ctx, ids, day)
	if err != nil {
		return err
	}
	replayEnd := shared.EndOfDay(day)
	for _, account := range accounts {
		side, ok := sides[account.CategoryID]
		if !ok {
			metrics.AddDivergences("orphan_category", 1)
			logger.Error("account has no resolvable normal side",
				slog.Int64("account_id", account.ID), slog.Int64("category_id", account.CategoryID))
			continue
		}
		activity, err := deps.Ledger.ActivityTotals(ctx, account.ID, shared.LedgerEpoch, replayEnd)
		if err != nil {
			return err
		}
		replayed, err := balance.Ending(side, account.StartingBalance, activity)
		if err != nil {
			return err
		}
		snapped, ok := stored[account.ID]
		if !ok {
			metrics.AddDivergences("missing_snapshot", 1)
			logger.Warn("snapshot row missing",
				slog.Int64("account_id", account.ID), slog.String("date", day.Format("2006-01-02")))
			continue
		}
		if !snapped.Equal(replayed) {
			metrics.AddDivergences("stale_snapshot", 1)
			logger.Error("snapshot diverges from journal replay",
				slog.Int64("account_id", account.ID),
				slog.String("date", day.Format("2006-01-02")),
				slog.String("snapshot", snapped.String()),
				slog.String("replay", replayed.String()))
		}
	}
	return nil
}
