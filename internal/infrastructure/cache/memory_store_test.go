package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand so expiry tests need no sleeps
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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedStore(t *testing.T) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	store := newMemoryStore(time.Hour, clock.Now)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestMemoryStore_Claim(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	t.Run("first delivery wins", func(t *testing.T) {
		won, err := store.Claim(ctx, uuid.NewString(), time.Hour)
		require.NoError(t, err)
		assert.True(t, won)
	})

	t.Run("redelivery is a duplicate", func(t *testing.T) {
		key := uuid.NewString()
		won, err := store.Claim(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = store.Claim(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.False(t, won)
	})

	t.Run("expired claim can be taken again", func(t *testing.T) {
		key := "OrderCompleted:" + uuid.NewString()
		_, err := store.Claim(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.True(t, store.Held(key))

		clock.Advance(time.Minute)
		assert.False(t, store.Held(key))

		won, err := store.Claim(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, won)
	})
}

func TestMemoryStore_Release(t *testing.T) {
	store, _ := newClockedStore(t)
	ctx := context.Background()

	_, err := store.Claim(ctx, "failed-delivery", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "failed-delivery"))
	require.NoError(t, store.Release(ctx, "never-seen"))

	won, err := store.Claim(ctx, "failed-delivery", time.Hour)
	require.NoError(t, err)
	assert.True(t, won, "a released key is handled on redelivery")
}

func TestMemoryStore_Sweep(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	_, _ = store.Claim(ctx, "short-1", time.Minute)
	_, _ = store.Claim(ctx, "short-2", 2*time.Minute)
	_, _ = store.Claim(ctx, "long", time.Hour)
	assert.Equal(t, 3, store.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, store.sweep())
	clock.Advance(time.Minute)
	assert.Equal(t, 1, store.sweep())

	assert.Equal(t, 1, store.Len())
	assert.True(t, store.Held("long"))
}

func TestMemoryStore_ConcurrentClaims(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()
	key := uuid.NewString()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if won, err := store.Claim(ctx, key, time.Hour); err == nil && won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
