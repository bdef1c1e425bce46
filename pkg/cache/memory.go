package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	value    string
	deadline time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// MemoryCache is the single-process Service used when Redis is disabled.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := memoryConfig{maxEntries: 1024, sweepEvery: time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	mc := &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: cfg.maxEntries,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
	go mc.sweep(cfg.sweepEvery)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.put(key, value, ttl)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	e, ok := mc.live(key)
	if !ok {
		return "", ErrCacheMiss
	}
	return e.value, nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		delete(mc.entries, k)
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, held := mc.live(key); held {
		return "", false, nil
	}
	token := uuid.NewString()
	mc.put(key, token, ttl)
	return token, true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key, token string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	e, ok := mc.live(key)
	if !ok || e.value != token {
		return ErrNotOwner
	}
	delete(mc.entries, key)
	return nil
}

func (mc *MemoryCache) Ping(context.Context) error { return nil }

// Close stops the background sweeper.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}

// live returns the entry for key, dropping it if expired. Caller holds mu.
func (mc *MemoryCache) live(key string) (memoryEntry, bool) {
	e, ok := mc.entries[key]
	if ok && e.expired(mc.now()) {
		delete(mc.entries, key)
		return memoryEntry{}, false
	}
	return e, ok
}

// put stores under mu, evicting the soonest-to-expire entry when full.
func (mc *MemoryCache) put(key, value string, ttl time.Duration) {
	if _, exists := mc.entries[key]; !exists && len(mc.entries) >= mc.maxEntries {
		mc.evict()
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.deadline = mc.now().Add(ttl)
	}
	mc.entries[key] = e
}

func (mc *MemoryCache) evict() {
	var victim string
	var soonest time.Time
	for k, e := range mc.entries {
		if e.deadline.IsZero() {
			if victim == "" {
				victim = k
			}
			continue
		}
		if soonest.IsZero() || e.deadline.Before(soonest) {
			victim, soonest = k, e.deadline
		}
	}
	delete(mc.entries, victim)
}

func (mc *MemoryCache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			mc.mu.Lock()
			now := mc.now()
			for k, e := range mc.entries {
				if e.expired(now) {
					delete(mc.entries, k)
				}
			}
			mc.mu.Unlock()
		case <-mc.stop:
			return
		}
	}
}
