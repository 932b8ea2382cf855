package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cashbook-erp/cashbook/internal/app"
	"github.com/cashbook-erp/cashbook/internal/balance"
	"github.com/cashbook-erp/cashbook/internal/coa"
	"github.com/cashbook-erp/cashbook/internal/correction"
	"github.com/cashbook-erp/cashbook/internal/journal"
	"github.com/cashbook-erp/cashbook/internal/platform/cache"
	"github.com/cashbook-erp/cashbook/internal/platform/db"
	"github.com/cashbook-erp/cashbook/internal/receivable"
	"github.com/cashbook-erp/cashbook/internal/shared"
	"github.com/cashbook-erp/cashbook/internal/snapshot"
	"github.com/cashbook-erp/cashbook/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, balance cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	activity := shared.NewActivityLogger(pool)

	coaRepo := coa.NewRepository(pool)
	coaService := coa.NewService(coaRepo, activity)

	journalRepo := journal.NewRepository(pool)
	journalService := journal.NewService(journalRepo)

	balanceRepo := balance.NewRepository(pool)
	snapshotRepo := snapshot.NewRepository(pool)
	snapshotService := snapshot.NewService(snapshotRepo, coaRepo, balanceRepo, logger)

	balanceService := balance.NewService(balanceRepo, coaRepo, snapshotService, journalRepo, cfg.CategoryConfig(), logger)
	if redisClient != nil {
		balanceCache := balance.NewCache(redisClient, cfg.BalanceCacheTTL, logger)
		balanceService.WithCache(balanceCache)
		journalService.WithInvalidator(balanceCache)
	}

	correctionRepo := correction.NewRepository(pool)
	correctionService := correction.NewService(correctionRepo, journalService)

	receivableRepo := receivable.NewRepository(pool)
	receivableService := receivable.NewService(receivableRepo, journalService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Pool:              pool,
		Activity:          activity,
		COAHandler:        coa.NewHandler(logger, coaService),
		JournalHandler:    journal.NewHandler(logger, journalService),
		BalanceHandler:    balance.NewHandler(logger, balanceService),
		CorrectionHandler: correction.NewHandler(logger, correctionService),
		ReceivableHandler: receivable.NewHandler(logger, receivableService),
		JobHandler:        jobs.NewHandler(inspector, jobClient, logger),
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
