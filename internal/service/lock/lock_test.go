package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"
	"SentiTrade/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesPerKey(t *testing.T) {
	l := NewLocal()
	var inFlight, maxSeen int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "AAPL")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestLocalIndependentKeys(t *testing.T) {
	l := NewLocal()
	r1, err := l.Acquire(context.Background(), "AAPL")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r2, err := l.Acquire(ctx, "TSLA")
	require.NoError(t, err)
	r2()
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	l := NewLocal()
	r1, err := l.Acquire(context.Background(), "AAPL")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDistributedBusyAndRelease(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	l := NewDistributed(mc, time.Minute, WithWait(30*time.Millisecond), WithRetryInterval(5*time.Millisecond))

	release, err := l.Acquire(context.Background(), "AAPL")
	require.NoError(t, err)

	// a second replica sharing the cache sees the lock held
	other := NewDistributed(mc, time.Minute, WithWait(30*time.Millisecond), WithRetryInterval(5*time.Millisecond))
	_, err = other.Acquire(context.Background(), "AAPL")
	require.ErrorIs(t, err, models.ErrInstrumentBusy)

	release()
	release() // idempotent

	r2, err := other.Acquire(context.Background(), "AAPL")
	require.NoError(t, err)
	r2()
}
