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

	"github.com/odyssey-erp/landedcost/internal/app"
	jobmetrics "github.com/odyssey-erp/landedcost/internal/jobs"
	"github.com/odyssey-erp/landedcost/internal/observability"
	"github.com/odyssey-erp/landedcost/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(".env")
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("open backends", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("close backends", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	store, closeStore, err := app.NewLockStore(cfg, backends)
	if err != nil {
		logger.Error("open lock store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = closeStore() }()

	lockService, err := app.NewLockService(cfg, store, logger, metrics)
	if err != nil {
		logger.Error("init lock service", slog.Any("error", err))
		os.Exit(1)
	}
	refCache, err := app.NewReferenceCache(cfg, backends)
	if err != nil {
		logger.Error("init reference cache", slog.Any("error", err))
		os.Exit(1)
	}

	sweepJob := jobs.NewLockSweepJob(lockService, logger, jobMetrics)
	warmupJob := jobs.NewReferenceWarmupJob(refCache, logger, jobMetrics)

	schedule, err := app.ScheduledTasks(cfg)
	if err != nil {
		logger.Error("build worker schedule", slog.Any("error", err))
		os.Exit(1)
	}
	if !cfg.LockSweepEnabled() {
		logger.Info("stale lock sweep disabled", slog.String("hint", "set LOCK_STALE_AFTER above the longest listing duration to enable"))
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskListingLockSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskReferenceWarmup, Handler: warmupJob.Handle},
		},
		Cron: schedule,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	checks := map[string]app.HealthCheck{}
	if backends.Pool != nil {
		checks["postgres"] = func(ctx context.Context) error { return backends.Pool.Ping(ctx) }
	}
	if backends.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return backends.Redis.Ping(ctx).Err() }
	}

	server := &http.Server{
		Addr: cfg.OpsAddr,
		Handler: app.NewRouter(app.RouterParams{
			Logger:     logger,
			Config:     cfg,
			Metrics:    metrics,
			JobHandler: jobs.NewHandler(inspector, logger),
			Reference:  refCache,
			Checks:     checks,
		}),
		ReadTimeout:  cfg.OpsReadTimeout,
		WriteTimeout: cfg.OpsWriteTimeout,
	}
	go func() {
		logger.Info("ops server listening", slog.String("addr", cfg.OpsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server", slog.Any("error", err))
			stop()
		}
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown", slog.Any("error", err))
	}
}
