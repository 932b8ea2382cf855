package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cashbook-erp/cashbook/internal/app"
	"github.com/cashbook-erp/cashbook/internal/balance"
	"github.com/cashbook-erp/cashbook/internal/coa"
	jobmetrics "github.com/cashbook-erp/cashbook/internal/jobs"
	"github.com/cashbook-erp/cashbook/internal/platform/db"
	"github.com/cashbook-erp/cashbook/internal/snapshot"
	"github.com/cashbook-erp/cashbook/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	coaRepo := coa.NewRepository(pool)
	balanceRepo := balance.NewRepository(pool)
	snapshotRepo := snapshot.NewRepository(pool)
	snapshotService := snapshot.NewService(snapshotRepo, coaRepo, balanceRepo, logger)

	metrics := jobmetrics.NewMetrics(nil)

	rebuildTask, err := jobs.NewSnapshotRebuildTask(jobs.SnapshotRebuildPayload{})
	if err != nil {
		logger.Error("build rebuild task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(time.Now().UTC())
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: map[string]asynq.HandlerFunc{
			jobs.TaskSnapshotRebuild: jobs.NewSnapshotRebuildHandler(snapshotService, metrics, logger),
			jobs.TaskLedgerIntegrity: jobs.NewLedgerIntegrityHandler(jobs.IntegrityDeps{
				Accounts: coaRepo,
				Ledger:   balanceRepo,
				Store:    snapshotRepo,
			}, metrics, logger),
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SnapshotCron, Task: rebuildTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IntegrityCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
