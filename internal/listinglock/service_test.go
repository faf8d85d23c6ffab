package listinglock

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/landedcost/internal/shared"
)

type recordingMetrics struct {
	mu       sync.Mutex
	acquires map[string]int
	releases int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{acquires: map[string]int{}}
}

func (r *recordingMetrics) LockAcquire(_ string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquires[outcome]++
}

func (r *recordingMetrics) LockRelease(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases++
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) TryInsert(context.Context, Lock) (bool, error) { return false, f.err }

// handoffStore lets another owner take the SKU right after each successful
// insert, as a concurrent release and acquire would.
type handoffStore struct {
	*MemoryStore
}

func (h handoffStore) TryInsert(ctx context.Context, lock Lock) (bool, error) {
	ok, err := h.MemoryStore.TryInsert(ctx, lock)
	if !ok || err != nil {
		return ok, err
	}
	if _, err := h.Deactivate(ctx, lock.SKU, lock.ID, lock.LockedAt); err != nil {
		return false, err
	}
	other := Lock{ID: "other", SKU: lock.SKU, Platform: "etsy", AccountID: "acct-9", IsActive: true, LockedAt: lock.LockedAt}
	if _, err := h.MemoryStore.TryInsert(ctx, other); err != nil {
		return false, err
	}
	return true, nil
}

func TestAcquireAndRelease(t *testing.T) {
	metrics := newRecordingMetrics()
	svc := NewService(NewMemoryStore(), ServiceConfig{Metrics: metrics})
	ctx := context.Background()

	ok, err := svc.Acquire(ctx, "SKU-1", "ebay", "acct-1", "initial listing")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Acquire(ctx, "SKU-1", "etsy", "acct-9", "cross-list")
	require.NoError(t, err)
	require.False(t, ok)

	lock, err := svc.Active(ctx, "SKU-1")
	require.NoError(t, err)
	require.Equal(t, "ebay", lock.Platform)
	require.Equal(t, "initial listing", lock.Reason)

	released, err := svc.Release(ctx, "SKU-1")
	require.NoError(t, err)
	require.True(t, released)

	ok, err = svc.Acquire(ctx, "SKU-1", "etsy", "acct-9", "cross-list")
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, 2, metrics.acquires[OutcomeAcquired])
	require.Equal(t, 1, metrics.acquires[OutcomeConflict])
	require.Equal(t, 1, metrics.releases)
}

func TestReleaseIsIdempotent(t *testing.T) {
	metrics := newRecordingMetrics()
	svc := NewService(NewMemoryStore(), ServiceConfig{Metrics: metrics})
	ctx := context.Background()

	released, err := svc.Release(ctx, "SKU-NONE")
	require.NoError(t, err)
	require.True(t, released)

	_, err = svc.Acquire(ctx, "SKU-2", "ebay", "acct-1", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		released, err = svc.Release(ctx, "SKU-2")
		require.NoError(t, err)
		require.True(t, released)
	}
	require.Equal(t, 1, metrics.releases)
}

func TestReacquirePolicies(t *testing.T) {
	ctx := context.Background()

	conflict := NewService(NewMemoryStore(), ServiceConfig{})
	require.Equal(t, ReacquireConflict, conflict.Policy())
	ok, err := conflict.Acquire(ctx, "SKU-3", "ebay", "acct-1", "")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = conflict.Acquire(ctx, "SKU-3", "ebay", "acct-1", "")
	require.NoError(t, err)
	require.False(t, ok)

	metrics := newRecordingMetrics()
	idempotent := NewService(NewMemoryStore(), ServiceConfig{Policy: ReacquireIdempotent, Metrics: metrics})
	ok, err = idempotent.Acquire(ctx, "SKU-3", "ebay", "acct-1", "")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = idempotent.Acquire(ctx, "SKU-3", " ebay ", "acct-1", "")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = idempotent.Acquire(ctx, "SKU-3", "ebay", "acct-2", "")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, metrics.acquires[OutcomeReacquired])
}

func TestParseReacquirePolicy(t *testing.T) {
	p, err := ParseReacquirePolicy("")
	require.NoError(t, err)
	require.Equal(t, ReacquireConflict, p)

	p, err = ParseReacquirePolicy(" Idempotent ")
	require.NoError(t, err)
	require.Equal(t, ReacquireIdempotent, p)

	_, err = ParseReacquirePolicy("steal")
	require.Error(t, err)
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			svc := NewService(factory(t), ServiceConfig{Backend: name})
			ctx := context.Background()
			sku := uniqueSKU("CONC")

			const workers = 24
			results := make([]bool, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					ok, err := svc.Acquire(ctx, sku, "platform", uniqueSKU("acct"), "race")
					assert.NoError(t, err)
					results[i] = ok
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, ok := range results {
				if ok {
					wins++
				}
			}
			require.Equal(t, 1, wins)

			_, err := svc.Release(ctx, sku)
			require.NoError(t, err)
			ok, err := svc.Acquire(ctx, sku, "other", "acct-new", "after release")
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestIsLockedByAndFilterCandidates(t *testing.T) {
	svc := NewService(NewMemoryStore(), ServiceConfig{})
	ctx := context.Background()
	candidates := []Owner{
		{Platform: "ebay", AccountID: "acct-1"},
		{Platform: "ebay", AccountID: "acct-2"},
		{Platform: "etsy", AccountID: "acct-1"},
	}

	held, err := svc.IsLockedBy(ctx, "SKU-4", "ebay", "acct-1")
	require.NoError(t, err)
	require.False(t, held)

	annotated, err := svc.FilterCandidatesByLock(ctx, "SKU-4", candidates)
	require.NoError(t, err)
	for _, c := range annotated {
		require.False(t, c.Locked)
	}

	_, err = svc.Acquire(ctx, "SKU-4", "ebay", "acct-1", "")
	require.NoError(t, err)

	held, err = svc.IsLockedBy(ctx, "SKU-4", "ebay", "acct-1")
	require.NoError(t, err)
	require.True(t, held)
	held, err = svc.IsLockedBy(ctx, "SKU-4", "ebay", "acct-2")
	require.NoError(t, err)
	require.False(t, held)

	annotated, err = svc.FilterCandidatesByLock(ctx, "SKU-4", candidates)
	require.NoError(t, err)
	require.Len(t, annotated, 3)
	require.False(t, annotated[0].Locked)
	require.True(t, annotated[1].Locked)
	require.True(t, annotated[2].Locked)

	_, err = svc.Active(ctx, "SKU-4")
	require.NoError(t, err)
}

func TestStaleSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	var buf bytes.Buffer
	store := NewMemoryStore()
	metrics := newRecordingMetrics()
	svc := NewService(store, ServiceConfig{
		StaleAfter: time.Hour,
		Clock:      clock.Now,
		Metrics:    metrics,
		Logger:     slog.New(slog.NewTextHandler(&buf, nil)),
	})
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "SKU-OLD", "ebay", "acct-1", "")
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)
	_, err = svc.Acquire(ctx, "SKU-NEW", "ebay", "acct-1", "")
	require.NoError(t, err)

	old, err := svc.Active(ctx, "SKU-OLD")
	require.NoError(t, err)
	require.False(t, svc.IsStale(old))

	clock.Advance(30 * time.Minute)
	require.True(t, svc.IsStale(old))

	released, err := svc.SweepStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, released)
	require.Contains(t, buf.String(), "stale listing lock released")

	_, err = svc.Active(ctx, "SKU-OLD")
	require.ErrorIs(t, err, ErrNoActiveLock)
	_, err = svc.Active(ctx, "SKU-NEW")
	require.NoError(t, err)

	history := store.History("SKU-OLD")
	require.Len(t, history, 1)
	require.NotNil(t, history[0].UnlockedAt)
	require.Equal(t, 1, metrics.releases)
}

func TestSweepWithoutWindowIsNoop(t *testing.T) {
	svc := NewService(NewMemoryStore(), ServiceConfig{})
	n, err := svc.SweepStale(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.False(t, svc.IsStale(Lock{IsActive: true}))
}

func TestLongLivedListingKeepsLockWithoutWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(NewMemoryStore(), ServiceConfig{Clock: clock.Now})
	ctx := context.Background()

	ok, err := svc.Acquire(ctx, "SKU-LIVE", "ebay", "acct-1", "publish")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(30 * 24 * time.Hour)
	released, err := svc.SweepStale(ctx)
	require.NoError(t, err)
	require.Zero(t, released)

	ok, err = svc.Acquire(ctx, "SKU-LIVE", "amazon", "acct-2", "publish")
	require.NoError(t, err)
	require.False(t, ok)

	holder, err := svc.Active(ctx, "SKU-LIVE")
	require.NoError(t, err)
	require.Equal(t, "ebay", holder.Platform)
}

func TestAcquireValidation(t *testing.T) {
	svc := NewService(NewMemoryStore(), ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "   ", "ebay", "acct-1", "")
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.True(t, vErr.HasField("sku"))

	_, err = svc.Acquire(ctx, "SKU-5", "", "", "")
	require.ErrorAs(t, err, &vErr)
	require.True(t, vErr.HasField("platform"))
	require.True(t, vErr.HasField("account_id"))

	_, err = svc.Release(ctx, "")
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestAcquireStoreError(t *testing.T) {
	metrics := newRecordingMetrics()
	boom := errors.New("connection reset")
	svc := NewService(&failingStore{MemoryStore: NewMemoryStore(), err: boom}, ServiceConfig{Metrics: metrics})

	ok, err := svc.Acquire(context.Background(), "SKU-6", "ebay", "acct-1", "")
	require.False(t, ok)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, metrics.acquires[OutcomeError])
}

func TestMustAcquire(t *testing.T) {
	svc := NewService(NewMemoryStore(), ServiceConfig{})
	ctx := context.Background()

	lock, err := svc.MustAcquire(ctx, "SKU-7", "ebay", "acct-1", "publish")
	require.NoError(t, err)
	require.Equal(t, "SKU-7", lock.SKU)
	require.NotEmpty(t, lock.ID)

	holder, err := svc.MustAcquire(ctx, "SKU-7", "etsy", "acct-2", "publish")
	require.ErrorIs(t, err, ErrLockConflict)
	require.Contains(t, err.Error(), "ebay/acct-1")
	require.Equal(t, lock.ID, holder.ID)
}

func TestMustAcquireReturnsOwnLock(t *testing.T) {
	svc := NewService(handoffStore{MemoryStore: NewMemoryStore()}, ServiceConfig{})

	lock, err := svc.MustAcquire(context.Background(), "SKU-8", "ebay", "acct-1", "publish")
	require.NoError(t, err)
	require.Equal(t, "ebay", lock.Platform)
	require.Equal(t, "acct-1", lock.AccountID)
	require.NotEqual(t, "other", lock.ID)
}
