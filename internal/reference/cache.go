package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/landedcost/internal/shared"
)

// Loader produces a fresh snapshot from the system of record.
type Loader interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// Cache keeps the reference snapshot in Redis so every worker shares one
// copy and the database is hit once per TTL.
type Cache struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
	key    string
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, loader Loader, ttl time.Duration) *Cache {
	return &Cache{client: client, loader: loader, ttl: ttl, key: shared.ReferenceSnapshotKey}
}

// Snapshot returns the cached snapshot, loading it on a miss. Concurrent
// misses share one load.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if c == nil || c.loader == nil {
		return nil, errors.New("reference: cache loader required")
	}
	if c.client == nil {
		return c.loader.LoadSnapshot(ctx)
	}
	resultChan := c.group.DoChan(c.key, func() (interface{}, error) {
		return c.fetch(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Refresh reloads from the loader and overwrites the cached copy.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	if c == nil || c.loader == nil {
		return nil, errors.New("reference: cache loader required")
	}
	snap, err := c.loader.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if c.client == nil {
		return snap, nil
	}
	if err := c.store(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Invalidate drops the cached copy.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key).Err()
}

func (c *Cache) fetch(ctx context.Context) (*Snapshot, error) {
	payload, err := c.client.Get(ctx, c.key).Bytes()
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("reference: decode cached snapshot: %w", err)
		}
		return &snap, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reference: cache get: %w", err)
	}
	snap, err := c.loader.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *Cache) store(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("reference: encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("reference: cache set: %w", err)
	}
	return nil
}
