package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/odyssey-erp/landedcost/internal/listinglock"
)

// LockService is the subset of listinglock.Service used by the CLI.
type LockService interface {
	MustAcquire(ctx context.Context, sku, platform, accountID, reason string) (listinglock.Lock, error)
	Release(ctx context.Context, sku string) (bool, error)
	Active(ctx context.Context, sku string) (listinglock.Lock, error)
	IsStale(lock listinglock.Lock) bool
	SweepStale(ctx context.Context) (int, error)
}

// Exit codes specific to lock commands.
const (
	ExitLockConflict = 20
	ExitNoActiveLock = 21
)

// LockOptions defines available flags for the lock commands.
type LockOptions struct {
	SKU        string
	Platform   string
	AccountID  string
	Reason     string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *LockOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// LockStatus is the JSON shape printed by lock commands.
type LockStatus struct {
	SKU    string            `json:"sku"`
	Active bool              `json:"active"`
	Stale  bool              `json:"stale,omitempty"`
	Lock   *listinglock.Lock `json:"lock,omitempty"`
}

// LockCLI manages exclusive listing locks.
type LockCLI struct {
	locks LockService
}

// NewLockCLI constructs the helper.
func NewLockCLI(locks LockService) (*LockCLI, error) {
	if locks == nil {
		return nil, errors.New("lock cli: service required")
	}
	return &LockCLI{locks: locks}, nil
}

// AcquireCommand claims a SKU for an account.
func (c *LockCLI) AcquireCommand(ctx context.Context, opts LockOptions) int {
	opts.defaults()
	lock, err := c.locks.MustAcquire(ctx, opts.SKU, opts.Platform, opts.AccountID, opts.Reason)
	if errors.Is(err, listinglock.ErrLockConflict) {
		_, _ = fmt.Fprintf(opts.Stderr, "lock acquire: %v\n", err)
		if lock.ID != "" {
			c.print(opts, LockStatus{SKU: lock.SKU, Active: true, Stale: c.locks.IsStale(lock), Lock: &lock})
		}
		return ExitLockConflict
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "lock acquire: %v\n", err)
		return 1
	}
	return c.print(opts, LockStatus{SKU: lock.SKU, Active: true, Lock: &lock})
}

// ReleaseCommand deactivates the lock for a SKU.
func (c *LockCLI) ReleaseCommand(ctx context.Context, opts LockOptions) int {
	opts.defaults()
	if _, err := c.locks.Release(ctx, opts.SKU); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "lock release: %v\n", err)
		return 1
	}
	return c.print(opts, LockStatus{SKU: opts.SKU})
}

// StatusCommand prints the active lock for a SKU.
func (c *LockCLI) StatusCommand(ctx context.Context, opts LockOptions) int {
	opts.defaults()
	lock, err := c.locks.Active(ctx, opts.SKU)
	if errors.Is(err, listinglock.ErrNoActiveLock) {
		c.print(opts, LockStatus{SKU: opts.SKU})
		return ExitNoActiveLock
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "lock status: %v\n", err)
		return 1
	}
	return c.print(opts, LockStatus{SKU: lock.SKU, Active: true, Stale: c.locks.IsStale(lock), Lock: &lock})
}

// SweepCommand releases every stale lock.
func (c *LockCLI) SweepCommand(ctx context.Context, opts LockOptions) int {
	opts.defaults()
	released, err := c.locks.SweepStale(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "lock sweep: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		_ = json.NewEncoder(opts.Stdout).Encode(map[string]int{"released": released})
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "released %d stale lock(s)\n", released)
	return 0
}

func (c *LockCLI) print(opts LockOptions, status LockStatus) int {
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(status); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "lock: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	if !status.Active || status.Lock == nil {
		_, _ = fmt.Fprintf(opts.Stdout, "%s: unlocked\n", status.SKU)
		return 0
	}
	line := fmt.Sprintf("%s: locked by %s since %s", status.SKU, status.Lock.Owner(), status.Lock.LockedAt.Format(time.RFC3339))
	if status.Stale {
		line += " (stale)"
	}
	_, _ = fmt.Fprintln(opts.Stdout, line)
	return 0
}
