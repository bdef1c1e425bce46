package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
	"SentiTrade/pkg/cache"
)

// Local serializes work per key inside one process.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire blocks until the key is free or ctx is done.
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}
}

// Distributed takes the local lock first, then a TTL'd cache lock so that
// several replicas never trade the same instrument at once.
type Distributed struct {
	local   *Local
	cache   cache.Service
	ttl     time.Duration
	wait    time.Duration
	retry   time.Duration
	keyBase string
}

type Option func(*Distributed)

// WithWait bounds how long Acquire polls for a held lock.
func WithWait(d time.Duration) Option {
	return func(l *Distributed) { l.wait = d }
}

func WithRetryInterval(d time.Duration) Option {
	return func(l *Distributed) {
		if d > 0 {
			l.retry = d
		}
	}
}

func NewDistributed(c cache.Service, ttl time.Duration, opts ...Option) *Distributed {
	l := &Distributed{
		local:   NewLocal(),
		cache:   c,
		ttl:     ttl,
		wait:    30 * time.Second,
		retry:   100 * time.Millisecond,
		keyBase: "lock:trade",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Distributed) Acquire(ctx context.Context, instrument string) (func(), error) {
	wctx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	releaseLocal, err := l.local.Acquire(wctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInstrumentBusy, err)
	}

	key := cache.Key(l.keyBase, instrument)
	var token string
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		tok, ok, err := l.cache.TryLock(wctx, key, l.ttl)
		if err != nil {
			releaseLocal()
			return nil, fmt.Errorf("lock %s: %w", instrument, err)
		}
		if ok {
			token = tok
			break
		}
		select {
		case <-ticker.C:
		case <-wctx.Done():
			releaseLocal()
			return nil, fmt.Errorf("%w: %s", models.ErrInstrumentBusy, instrument)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.cache.Unlock(uctx, key, token)
			releaseLocal()
		})
	}, nil
}
