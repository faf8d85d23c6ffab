package reference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	snap  *Snapshot
	err   error
}

func (l *countingLoader) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.snap, nil
}

func newTestCache(t *testing.T, loader Loader, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, loader, ttl), mr
}

func TestCacheSnapshotLoadsOnce(t *testing.T) {
	loader := &countingLoader{snap: DefaultSnapshot()}
	cache, _ := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	first, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	second, err := cache.Snapshot(ctx)
	require.NoError(t, err)

	require.EqualValues(t, 1, loader.calls.Load())
	rate, ok := second.BaseRate("6403.99")
	require.True(t, ok)
	require.InDelta(t, 0.10, rate, 1e-12)
	require.Equal(t, first.Tiers(), second.Tiers())

	cn, ok := second.AdditionalRate("CN")
	require.True(t, ok)
	require.InDelta(t, 0.10, cn, 1e-12)
	_, ok = second.AdditionalRate("VN")
	require.False(t, ok)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	loader := &countingLoader{snap: DefaultSnapshot()}
	cache, mr := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	_, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = cache.Snapshot(ctx)
	require.NoError(t, err)

	require.EqualValues(t, 2, loader.calls.Load())
}

func TestCacheInvalidateAndRefresh(t *testing.T) {
	loader := &countingLoader{snap: DefaultSnapshot()}
	cache, mr := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	_, err := cache.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.key))

	require.NoError(t, cache.Invalidate(ctx))
	require.False(t, mr.Exists(cache.key))

	_, err = cache.Snapshot(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, loader.calls.Load())
}

func TestCacheConcurrentMissesShareLoad(t *testing.T) {
	loader := &countingLoader{snap: DefaultSnapshot()}
	cache, _ := newTestCache(t, loader, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Snapshot(ctx)
			assert.NoError(t, err)
			assert.NotNil(t, snap)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, loader.calls.Load(), int32(16))
	require.GreaterOrEqual(t, loader.calls.Load(), int32(1))
}

func TestCachePropagatesLoaderError(t *testing.T) {
	loader := &countingLoader{err: errors.New("db down")}
	cache, _ := newTestCache(t, loader, time.Minute)

	_, err := cache.Snapshot(context.Background())
	require.EqualError(t, err, "db down")
}

func TestCacheWithoutRedisUsesLoader(t *testing.T) {
	loader := &countingLoader{snap: DefaultSnapshot()}
	cache := NewCache(nil, loader, time.Minute)

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, loader.calls.Load())
}
