package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskListingLockSweep releases listing locks held past the stale window.
	TaskListingLockSweep = "listing:lock-sweep"
	// TaskReferenceWarmup reloads tariff, VAT and weight-tier tables into the cache.
	TaskReferenceWarmup = "reference:warmup"
)

// LockSweepPayload carries scheduling metadata.
type LockSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLockSweepTask constructs an Asynq task for the stale lock sweep.
func NewLockSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LockSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskListingLockSweep, body, asynq.Queue(QueueDefault)), nil
}

// ReferenceWarmupPayload describes why the warmup was requested.
type ReferenceWarmupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Reason       string    `json:"reason,omitempty"`
}

// NewReferenceWarmupTask constructs an Asynq task for the reference warmup.
func NewReferenceWarmupTask(at time.Time, reason string) (*asynq.Task, error) {
	body, err := json.Marshal(ReferenceWarmupPayload{ScheduledFor: at, Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReferenceWarmup, body, asynq.Queue(QueueDefault)), nil
}
