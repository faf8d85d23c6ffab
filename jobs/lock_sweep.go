package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/landedcost/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StaleSweeper releases stale listing locks.
type StaleSweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// LockSweepJob runs the stale listing-lock sweep.
type LockSweepJob struct {
	Locks   StaleSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLockSweepJob wires dependencies for the sweep handler.
func NewLockSweepJob(locks StaleSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *LockSweepJob {
	return &LockSweepJob{Locks: locks, Logger: logger, Metrics: metrics}
}

// Handle processes listing:lock-sweep tasks.
func (j *LockSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Locks == nil {
		return errors.New("lock sweep: handler not configured")
	}
	var payload LockSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskListingLockSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	released, err := j.Locks.SweepStale(ctx)
	j.metrics().AddLocksSwept(released)
	if err != nil {
		logger.Error("sweep stale listing locks", slog.Int("released", released), slog.Any("error", err))
		return err
	}
	logger.Info("stale listing locks swept", slog.Int("released", released))
	return nil
}

func (j *LockSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskListingLockSweep))
	}
	return slog.Default().With(slog.String("job", TaskListingLockSweep))
}

func (j *LockSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
