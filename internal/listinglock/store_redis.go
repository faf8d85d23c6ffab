package listinglock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/landedcost/internal/shared"
)

// ActiveIndexKey is the sorted set of locked SKUs scored by lock time.
const ActiveIndexKey = "listing:locks:active"

const acquireScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "sku", ARGV[2], "platform", ARGV[3], "account_id", ARGV[4], "reason", ARGV[5], "locked_at", ARGV[6])
redis.call("ZADD", KEYS[2], ARGV[6], ARGV[2])
return 1
`

const releaseScript = `
local id = redis.call("HGET", KEYS[1], "id")
if not id then
  return 0
end
if ARGV[1] ~= "" and id ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[2])
return 1
`

// RedisStore keeps the active lock per SKU in a hash. Released locks are
// deleted, so no history is retained.
type RedisStore struct {
	client  *redis.Client
	acquire *redis.Script
	release *redis.Script
}

// NewRedisStore constructs the store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		acquire: redis.NewScript(acquireScript),
		release: redis.NewScript(releaseScript),
	}
}

func (s *RedisStore) TryInsert(ctx context.Context, lock Lock) (bool, error) {
	keys := []string{shared.ListingLockKey(lock.SKU), ActiveIndexKey}
	n, err := s.acquire.Run(ctx, s.client, keys,
		lock.ID, lock.SKU, lock.Platform, lock.AccountID, lock.Reason, lock.LockedAt.UnixNano()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) Active(ctx context.Context, sku string) (Lock, error) {
	fields, err := s.client.HGetAll(ctx, shared.ListingLockKey(sku)).Result()
	if err != nil {
		return Lock{}, err
	}
	if len(fields) == 0 {
		return Lock{}, ErrNoActiveLock
	}
	return lockFromHash(fields)
}

func (s *RedisStore) Deactivate(ctx context.Context, sku, lockID string, _ time.Time) (bool, error) {
	keys := []string{shared.ListingLockKey(sku), ActiveIndexKey}
	n, err := s.release.Run(ctx, s.client, keys, lockID, sku).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) ListActiveBefore(ctx context.Context, cutoff time.Time) ([]Lock, error) {
	skus, err := s.client.ZRangeByScore(ctx, ActiveIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixNano(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Lock, 0, len(skus))
	for _, sku := range skus {
		lock, err := s.Active(ctx, sku)
		if errors.Is(err, ErrNoActiveLock) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, lock)
	}
	return out, nil
}

func lockFromHash(fields map[string]string) (Lock, error) {
	ns, err := strconv.ParseInt(fields["locked_at"], 10, 64)
	if err != nil {
		return Lock{}, fmt.Errorf("listinglock: parse locked_at: %w", err)
	}
	return Lock{
		ID:        fields["id"],
		SKU:       fields["sku"],
		Platform:  fields["platform"],
		AccountID: fields["account_id"],
		Reason:    fields["reason"],
		IsActive:  true,
		LockedAt:  time.Unix(0, ns).UTC(),
	}, nil
}
