package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/landedcost/internal/feealloc"
	"github.com/odyssey-erp/landedcost/internal/listinglock"
	"github.com/odyssey-erp/landedcost/internal/observability"
	"github.com/odyssey-erp/landedcost/internal/platform/cache"
	"github.com/odyssey-erp/landedcost/internal/platform/db"
	"github.com/odyssey-erp/landedcost/internal/pricing"
	"github.com/odyssey-erp/landedcost/internal/profitability"
	"github.com/odyssey-erp/landedcost/internal/reference"
	"github.com/odyssey-erp/landedcost/jobs"
)

// Backends holds the external connections opened for a process.
type Backends struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client

	closers []func() error
}

// NeedsPostgres reports whether the configuration requires a database pool.
func (c *Config) NeedsPostgres() bool {
	return c.LockBackend == BackendPostgres || c.ReferenceSource == "postgres"
}

// OpenBackends connects to PostgreSQL when required and to Redis when it is
// reachable. Redis is mandatory only for the redis lock backend.
func OpenBackends(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}
	if cfg.NeedsPostgres() {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		b.Pool = pool
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
	}
	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		switch {
		case err == nil:
			b.Redis = client
			b.closers = append(b.closers, client.Close)
		case cfg.LockBackend == BackendRedis:
			_ = b.Close()
			return nil, err
		default:
			logger.Warn("redis unavailable, reference cache disabled", slog.Any("error", err))
		}
	}
	return b, nil
}

// Close releases every connection in reverse order.
func (b *Backends) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// MigratePostgres applies the reference and lock schemas in one transaction.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("app: migrate requires a database pool")
	}
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if err := reference.NewPostgresRepository(tx).Migrate(ctx); err != nil {
			return err
		}
		return listinglock.NewPostgresStore(tx).Migrate(ctx)
	})
}

// NewReferenceCache builds the snapshot cache over the configured source.
// A nil Redis client makes every call hit the loader directly.
func NewReferenceCache(cfg *Config, b *Backends) (*reference.Cache, error) {
	var loader reference.Loader
	switch cfg.ReferenceSource {
	case "static":
		loader = reference.StaticLoader{}
	case "postgres":
		if b == nil || b.Pool == nil {
			return nil, errors.New("app: postgres reference source requires PG_DSN")
		}
		loader = reference.NewPostgresRepository(b.Pool)
	default:
		return nil, fmt.Errorf("app: unsupported REFERENCE_SOURCE %q", cfg.ReferenceSource)
	}
	var client *redis.Client
	if b != nil {
		client = b.Redis
	}
	return reference.NewCache(client, loader, cfg.ReferenceCacheTTL), nil
}

// NewLockStore opens the configured lock backend. The returned closer is
// never nil.
func NewLockStore(cfg *Config, b *Backends) (listinglock.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.LockBackend {
	case BackendMemory:
		return listinglock.NewMemoryStore(), noop, nil
	case BackendSQLite:
		store, err := listinglock.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case BackendRedis:
		if b == nil || b.Redis == nil {
			return nil, noop, errors.New("app: redis lock backend requires REDIS_ADDR")
		}
		return listinglock.NewRedisStore(b.Redis), noop, nil
	case BackendPostgres:
		if b == nil || b.Pool == nil {
			return nil, noop, errors.New("app: postgres lock backend requires PG_DSN")
		}
		return listinglock.NewPostgresStore(b.Pool), noop, nil
	default:
		return nil, noop, fmt.Errorf("app: unsupported LOCK_BACKEND %q", cfg.LockBackend)
	}
}

// NewLockService wraps store with the configured policy and stale window.
func NewLockService(cfg *Config, store listinglock.Store, logger *slog.Logger, metrics *observability.Metrics) (*listinglock.Service, error) {
	policy, err := listinglock.ParseReacquirePolicy(cfg.LockReacquirePolicy)
	if err != nil {
		return nil, err
	}
	svcCfg := listinglock.ServiceConfig{
		Backend:    cfg.LockBackend,
		Policy:     policy,
		StaleAfter: cfg.LockStaleAfter,
		Logger:     logger,
	}
	if metrics != nil {
		svcCfg.Metrics = metrics
	}
	return listinglock.NewService(store, svcCfg), nil
}

// NewOptimizer builds the fee allocator from cap and selection settings.
func NewOptimizer(cfg *Config) (*feealloc.Optimizer, error) {
	opts, err := feealloc.SelectionOptions(cfg.AllocationSelection, cfg.InflationCeiling)
	if err != nil {
		return nil, err
	}
	opts = append(opts, feealloc.WithCap(cfg.FeeCapPct, cfg.FeeCapAbs))
	return feealloc.NewOptimizer(opts...), nil
}

// NewEngine builds a quoting engine over snap.
func NewEngine(cfg *Config, snap *reference.Snapshot, logger *slog.Logger, metrics *observability.Metrics) (*pricing.Engine, error) {
	optimizer, err := NewOptimizer(cfg)
	if err != nil {
		return nil, err
	}
	opts := []pricing.Option{
		pricing.WithOptimizer(optimizer),
		pricing.WithGate(profitability.NewGate(profitability.WithLogger(logger))),
		pricing.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, pricing.WithMetrics(metrics))
	}
	return pricing.NewEngine(snap, opts...), nil
}

// ScheduledTasks lists the worker's cron registrations. The lock sweep is
// scheduled only when a stale window is configured.
func ScheduledTasks(cfg *Config) ([]jobs.CronRegistration, error) {
	warmupTask, err := jobs.NewReferenceWarmupTask(time.Time{}, "scheduled")
	if err != nil {
		return nil, fmt.Errorf("app: build reference warmup task: %w", err)
	}
	regs := []jobs.CronRegistration{
		{Spec: cfg.ReferenceCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	if !cfg.LockSweepEnabled() {
		return regs, nil
	}
	sweepTask, err := jobs.NewLockSweepTask(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("app: build lock sweep task: %w", err)
	}
	return append(regs, jobs.CronRegistration{
		Spec: cfg.LockSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)},
	}), nil
}
