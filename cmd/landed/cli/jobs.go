package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/landedcost/jobs"
)

// Enqueuer submits background tasks.
type Enqueuer interface {
	EnqueueLockSweep(ctx context.Context, at time.Time) (*asynq.TaskInfo, error)
	EnqueueReferenceWarmup(ctx context.Context, at time.Time, reason string) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client Enqueuer
	now    func() time.Time
}

// NewJobsCLI initialises the CLI helpers.
func NewJobsCLI(client Enqueuer) (*JobsCLI, error) {
	if client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return &JobsCLI{client: client, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	switch name {
	case jobs.TaskListingLockSweep:
		return c.client.EnqueueLockSweep(ctx, c.now())
	case jobs.TaskReferenceWarmup:
		return c.client.EnqueueReferenceWarmup(ctx, c.now(), "manual")
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// TriggerCommand enqueues name and prints the task id.
func (c *JobsCLI) TriggerCommand(ctx context.Context, name string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	info, err := c.Trigger(ctx, name)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
		return 1
	}
	id := ""
	if info != nil {
		id = info.ID
	}
	_, _ = fmt.Fprintf(stdout, "enqueued %s (%s)\n", name, id)
	return 0
}
