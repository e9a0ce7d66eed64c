package ratelimit

import (
	"context"
	"testing"
	"time"

	"intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually-advanced time source for window tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryStore_CountsWithinWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, err := store.Incr(ctx, "ip:1.2.3.4", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Incr(ctx, "ip:1.1.1.1", time.Hour)
		require.NoError(t, err)
	}

	count, err := store.Incr(ctx, "ip:2.2.2.2", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "a different key must start from zero")
}

func TestMemoryStore_WindowSlides(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Incr(ctx, "ip:1.2.3.4", time.Hour)
		require.NoError(t, err)
	}

	// Just inside the window the old hits still count.
	clock.Advance(59 * time.Minute)
	count, err := store.Incr(ctx, "ip:1.2.3.4", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)

	// 61 minutes after the original burst only the two recent hits remain.
	clock.Advance(2 * time.Minute)
	count, err = store.Incr(ctx, "ip:1.2.3.4", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMemoryStore_CleanupDropsIdleKeys(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	_, err := store.Incr(ctx, "ip:stale", time.Hour)
	require.NoError(t, err)

	clock.Advance(3 * time.Hour)
	_, err = store.Incr(ctx, "ip:fresh", time.Hour)
	require.NoError(t, err)

	store.Cleanup(2 * time.Hour)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.NotContains(t, store.hits, "ip:stale")
	assert.Contains(t, store.hits, "ip:fresh")
}

func TestLimiter_AnonPool(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	limiter := New(store,
		Pool{Name: "anon", Limit: 5, Window: time.Hour},
		Pool{Name: "auth", Limit: 10, Window: time.Hour},
		FailOpen,
	)
	ctx := context.Background()
	anon := models.Identity{}

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, anon, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, anon, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed, "sixth request in the window must be blocked")

	// A different client address has its own quota.
	allowed, err = limiter.Allow(ctx, anon, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, allowed)

	// Once the window has passed the address is admitted again.
	clock.Advance(61 * time.Minute)
	allowed, err = limiter.Allow(ctx, anon, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_AuthPoolIsWiderAndKeyedByUser(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	limiter := New(store,
		Pool{Name: "anon", Limit: 5, Window: time.Hour},
		Pool{Name: "auth", Limit: 10, Window: time.Hour},
		FailOpen,
	)
	ctx := context.Background()
	user := models.Identity{UserID: 42}

	// The authenticated quota survives past the anonymous limit, even
	// from the same address.
	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(ctx, user, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, user, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Another user from the same address is unaffected.
	allowed, err = limiter.Allow(ctx, models.Identity{UserID: 43}, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, assert.AnError
}

func TestLimiter_FailPolicy(t *testing.T) {
	t.Parallel()

	anon := Pool{Name: "anon", Limit: 5, Window: time.Hour}
	auth := Pool{Name: "auth", Limit: 10, Window: time.Hour}

	t.Run("fail open admits on store error", func(t *testing.T) {
		t.Parallel()
		limiter := New(failingStore{}, anon, auth, FailOpen)
		allowed, err := limiter.Allow(context.Background(), models.Identity{}, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("fail closed surfaces the error", func(t *testing.T) {
		t.Parallel()
		limiter := New(failingStore{}, anon, auth, FailClosed)
		allowed, err := limiter.Allow(context.Background(), models.Identity{}, "1.2.3.4")
		require.Error(t, err)
		assert.False(t, allowed)
	})
}
