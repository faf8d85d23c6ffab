// Package listinglock guarantees that a SKU is actively listed by at most one
// (platform, account) pair at a time.
package listinglock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoActiveLock is returned by stores when a SKU is unlocked.
	ErrNoActiveLock = errors.New("listinglock: no active lock")
	// ErrLockConflict is returned by MustAcquire when another owner holds the SKU.
	ErrLockConflict = errors.New("listinglock: sku locked by another owner")
)

// Lock is one exclusive-lock row. At most one row per SKU is active.
type Lock struct {
	ID         string     `json:"id"`
	SKU        string     `json:"sku"`
	Platform   string     `json:"locked_platform"`
	AccountID  string     `json:"locked_account_id"`
	Reason     string     `json:"reason"`
	IsActive   bool       `json:"is_active"`
	LockedAt   time.Time  `json:"locked_at"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Owner returns the (platform, account) holding the lock.
func (l Lock) Owner() Owner {
	return Owner{Platform: l.Platform, AccountID: l.AccountID}
}

// Owner identifies a marketplace account.
type Owner struct {
	Platform  string `json:"platform" validate:"required"`
	AccountID string `json:"account_id" validate:"required"`
}

func (o Owner) normalize() Owner {
	return Owner{Platform: strings.TrimSpace(o.Platform), AccountID: strings.TrimSpace(o.AccountID)}
}

// Matches compares owners ignoring surrounding whitespace.
func (o Owner) Matches(other Owner) bool {
	return o.normalize() == other.normalize()
}

func (o Owner) String() string {
	return fmt.Sprintf("%s/%s", o.Platform, o.AccountID)
}

// Candidate is an Owner annotated with whether the SKU lock excludes it.
type Candidate struct {
	Owner
	Locked bool `json:"locked"`
}

// ReacquirePolicy decides what Acquire does when the caller already holds the
// active lock.
type ReacquirePolicy string

const (
	// ReacquireConflict treats any existing active lock as a conflict.
	ReacquireConflict ReacquirePolicy = "conflict"
	// ReacquireIdempotent reports success when the same owner already holds it.
	ReacquireIdempotent ReacquirePolicy = "idempotent"
)

// ParseReacquirePolicy maps configuration text to a policy.
func ParseReacquirePolicy(raw string) (ReacquirePolicy, error) {
	switch ReacquirePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ReacquireConflict:
		return ReacquireConflict, nil
	case ReacquireIdempotent:
		return ReacquireIdempotent, nil
	default:
		return "", fmt.Errorf("listinglock: unknown reacquire policy %q", raw)
	}
}

// Store persists locks. TryInsert must be a single atomic conditional write:
// it returns false without error when another active lock exists for the SKU.
type Store interface {
	TryInsert(ctx context.Context, lock Lock) (bool, error)
	Active(ctx context.Context, sku string) (Lock, error)
	// Deactivate marks the active lock for sku inactive. A non-empty lockID
	// restricts the update to that lock. It reports whether a row changed.
	Deactivate(ctx context.Context, sku, lockID string, at time.Time) (bool, error)
	ListActiveBefore(ctx context.Context, cutoff time.Time) ([]Lock, error)
}
