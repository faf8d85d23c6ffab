package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/landedcost/internal/jobs"
	"github.com/odyssey-erp/landedcost/internal/reference"
)

// SnapshotRefresher reloads reference tables into the shared cache.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) (*reference.Snapshot, error)
}

// ReferenceWarmupJob refreshes the cached reference snapshot.
type ReferenceWarmupJob struct {
	Cache   SnapshotRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
	clock   func() time.Time
}

// NewReferenceWarmupJob wires dependencies for the warmup handler.
func NewReferenceWarmupJob(cache SnapshotRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReferenceWarmupJob {
	return &ReferenceWarmupJob{
		Cache:   cache,
		Logger:  logger,
		Metrics: metrics,
		Timeout: 30 * time.Second,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes reference:warmup tasks.
func (j *ReferenceWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Cache == nil {
		return errors.New("reference warmup: handler not configured")
	}
	var payload ReferenceWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}

	tracker := j.metrics().Track(TaskReferenceWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := j.now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	snap, err := j.Cache.Refresh(ctx)
	if err != nil {
		logger.Error("refresh reference snapshot", slog.Any("error", err))
		return err
	}
	j.metrics().MarkReferenceRefreshed(j.now())
	logger.Info("reference snapshot refreshed",
		slog.Int("tariffs", len(snap.Tariffs)),
		slog.Int("weight_tiers", len(snap.WeightTiers)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return nil
}

func (j *ReferenceWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReferenceWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReferenceWarmup))
}

func (j *ReferenceWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReferenceWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
