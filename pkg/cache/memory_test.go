package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts ...MemoryOption) *MemoryCache {
	t.Helper()
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMemoryCacheSetGetDelete(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "config:trading", `{"symbols":["AAPL"]}`, 0))
	got, err := mc.Get(ctx, "config:trading")
	require.NoError(t, err)
	assert.Equal(t, `{"symbols":["AAPL"]}`, got)

	require.NoError(t, mc.Delete(ctx, "config:trading"))
	_, err = mc.Get(ctx, "config:trading")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := newTestCache(t)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))
	clock = clock.Add(2 * time.Second)
	_, err := mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheLockOwnership(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	token, ok, err := mc.TryLock(ctx, "lock:trade:AAPL", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = mc.TryLock(ctx, "lock:trade:AAPL", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, mc.Unlock(ctx, "lock:trade:AAPL", "someone-else"), ErrNotOwner)
	require.NoError(t, mc.Unlock(ctx, "lock:trade:AAPL", token))

	_, ok, err = mc.TryLock(ctx, "lock:trade:AAPL", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheExpiredLockCanBeRetaken(t *testing.T) {
	mc := newTestCache(t)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return clock }
	ctx := context.Background()

	old, ok, _ := mc.TryLock(ctx, "lock:trade:TSLA", time.Second)
	require.True(t, ok)
	clock = clock.Add(2 * time.Second)

	_, ok, _ = mc.TryLock(ctx, "lock:trade:TSLA", time.Minute)
	assert.True(t, ok)
	assert.ErrorIs(t, mc.Unlock(ctx, "lock:trade:TSLA", old), ErrNotOwner)
}

func TestMemoryCacheEvictsSoonestExpiry(t *testing.T) {
	mc := newTestCache(t, WithMemoryMaxEntries(2))
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "short", "1", time.Minute))
	require.NoError(t, mc.Set(ctx, "long", "2", time.Hour))
	require.NoError(t, mc.Set(ctx, "new", "3", time.Hour))

	_, err := mc.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	v, err := mc.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "sentitrade:lock:trade:AAPL", Key("sentitrade", "lock:trade", "AAPL"))
	assert.Equal(t, "lock:AAPL", Key("", "lock", "AAPL"))
}
