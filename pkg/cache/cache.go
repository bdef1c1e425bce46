package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrNotOwner is returned by Unlock when the lock expired or was taken
	// over by another holder.
	ErrNotOwner = errors.New("cache: lock not held by caller")
)

// Service is the key/value surface the trading service needs: raw documents
// for the config resolver and owner-tokened leases for instrument locks.
type Service interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	// TryLock leases key for ttl. ok is false when someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
	Ping(ctx context.Context) error
}

// Key joins non-empty parts with ':'.
func Key(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}
