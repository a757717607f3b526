package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/herdledger/herdledger/internal/adjustments"
	"github.com/herdledger/herdledger/internal/app"
	"github.com/herdledger/herdledger/internal/catchup"
	"github.com/herdledger/herdledger/internal/integrity"
	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/platform/cache"
	"github.com/herdledger/herdledger/internal/platform/db"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
	"github.com/herdledger/herdledger/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	locks := shared.NewAdvisoryLock(redisClient, cfg.LockTTL)

	settingsRepo := settings.NewRepository(pool)
	journalRepo := journal.NewRepository(pool)
	journalService := journal.NewService(journalRepo, settingsRepo, auditLogger, logger)
	ledgerRepo := ledger.NewRepository(pool)
	adjustmentsRepo := adjustments.NewRepository(pool)
	monthlyRunner := journal.NewMonthlyRunner(journalRepo, ledgerRepo, adjustmentsRepo, settingsRepo, auditLogger, logger)

	catchupRepo := catchup.NewRepository(pool)
	catchupProcessor := catchup.NewProcessor(catchupRepo, journalService, journalRepo, ledgerRepo, settingsRepo, locks, logger)
	catchupProcessor.WithBatchSize(cfg.CatchupBatchSize)
	catchupProcessor.WithPause(cfg.CatchupPause)

	integrityRepo := integrity.NewRepository(pool)
	integrityService := integrity.NewService(integrityRepo, journalService, settingsRepo, locks, auditLogger, logger)

	companies := jobs.NewCompanySource(pool)
	depreciationJob := jobs.NewDepreciationRunJob(monthlyRunner, companies, logger, nil)
	catchupJob := jobs.NewCatchupRunJob(catchupProcessor, companies, logger, nil)
	integrityJob := jobs.NewIntegrityScanJob(integrityService, companies, logger, nil)

	depreciationTask, err := jobs.NewDepreciationRunTask("all", "previous")
	if err != nil {
		logger.Error("build depreciation task", slog.Any("error", err))
		os.Exit(1)
	}
	catchupTask, err := jobs.NewCatchupRunTask("all")
	if err != nil {
		logger.Error("build catchup task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewIntegrityScanTask("all", "previous")
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDepreciationRun, Handler: depreciationJob.Handle},
			{Type: jobs.TaskCatchupRun, Handler: catchupJob.Handle},
			{Type: jobs.TaskIntegrityScan, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 1 * *", Task: depreciationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: catchupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 2 * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
