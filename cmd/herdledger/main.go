package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/herdledger/herdledger/internal/adjustments"
	"github.com/herdledger/herdledger/internal/app"
	"github.com/herdledger/herdledger/internal/catchup"
	"github.com/herdledger/herdledger/internal/disposition"
	"github.com/herdledger/herdledger/internal/integrity"
	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/observability"
	"github.com/herdledger/herdledger/internal/platform/cache"
	"github.com/herdledger/herdledger/internal/platform/db"
	"github.com/herdledger/herdledger/internal/reconcile"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
	"github.com/herdledger/herdledger/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	locks := shared.NewAdvisoryLock(redisClient, cfg.LockTTL)

	settingsRepo := settings.NewRepository(dbpool)

	journalRepo := journal.NewRepository(dbpool)
	journalService := journal.NewService(journalRepo, settingsRepo, auditLogger, logger)

	ledgerRepo := ledger.NewRepository(dbpool)
	acquisitionPoster := journal.NewAcquisitionAdapter(settingsRepo, journalService)
	ledgerService := ledger.NewService(ledgerRepo, settingsRepo, acquisitionPoster, logger)

	adjustmentsRepo := adjustments.NewRepository(dbpool)
	monthlyRunner := journal.NewMonthlyRunner(journalRepo, ledgerRepo, adjustmentsRepo, settingsRepo, auditLogger, logger)

	dispositionRepo := disposition.NewRepository(dbpool)
	dispositionProcessor := disposition.NewProcessor(dispositionRepo, settingsRepo, auditLogger, logger)

	reconcileRepo := reconcile.NewRepository(dbpool)
	reconcileService := reconcile.NewService(reconcileRepo, settingsRepo, redisClient, logger)

	catchupRepo := catchup.NewRepository(dbpool)
	catchupProcessor := catchup.NewProcessor(catchupRepo, journalService, journalRepo, ledgerRepo, settingsRepo, locks, logger)
	catchupProcessor.WithBatchSize(cfg.CatchupBatchSize)
	catchupProcessor.WithPause(cfg.CatchupPause)

	integrityRepo := integrity.NewRepository(dbpool)
	integrityService := integrity.NewService(integrityRepo, journalService, settingsRepo, locks, auditLogger, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		LedgerHandler:      ledger.NewHandler(logger, ledgerService),
		JournalHandler:     journal.NewHandler(logger, journalService, monthlyRunner),
		AdjustmentsHandler: adjustments.NewHandler(logger, adjustmentsRepo),
		DispositionHandler: disposition.NewHandler(logger, dispositionProcessor),
		ReconcileHandler:   reconcile.NewHandler(logger, reconcileService),
		CatchupHandler:     catchup.NewHandler(logger, catchupProcessor, queue),
		IntegrityHandler:   integrity.NewHandler(logger, integrityService),
		SettingsHandler:    settings.NewHandler(logger, settingsRepo),
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
