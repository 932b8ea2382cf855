package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cashbook-erp/cashbook/internal/jobs"
	"github.com/cashbook-erp/cashbook/internal/shared"
	"github.com/cashbook-erp/cashbook/internal/snapshot"
)

// NewSnapshotRebuildHandler materializes daily balances for the requested
// range. The nightly cron enqueues an empty payload, which resolves to
// "yesterday"; manual rebuilds name an explicit range.
func NewSnapshotRebuildHandler(builder *snapshot.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SnapshotRebuildPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		now := time.Now().UTC()
		start := payload.Start
		end := payload.End
		if start.IsZero() {
			start = shared.DateOnly(now).AddDate(0, 0, -1)
		}
		if end.IsZero() {
			end = start
		}
		tracker := metrics.Track("snapshot_rebuild")
		err := builder.EnsureRange(ctx, start, end, now)
		if err != nil {
			logger.Error("snapshot rebuild failed",
				slog.String("start", start.Format("2006-01-02")),
				slog.String("end", end.Format("2006-01-02")),
				slog.Any("error", err))
		} else {
			logger.Info("snapshot rebuild finished",
				slog.String("start", start.Format("2006-01-02")),
				slog.String("end", end.Format("2006-01-02")))
		}
		return tracker.End(err)
	}
}
