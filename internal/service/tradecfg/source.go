package tradecfg

import (
	"context"
	"errors"
	"fmt"
	"os"

	"SentiTrade/pkg/cache"
)

// Source fetches the raw trading document (JSON or YAML).
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Name() string
}

// FileSource reads the document from disk on every fetch.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource { return &FileSource{path: path} }

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Fetch(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return b, nil
}

// CacheSource reads the document stored as a string under key, so operators can
// change parameters without redeploying.
type CacheSource struct {
	cache cache.Service
	key   string
}

func NewCacheSource(c cache.Service, key string) *CacheSource {
	return &CacheSource{cache: c, key: key}
}

func (s *CacheSource) Name() string { return "cache:" + s.key }

func (s *CacheSource) Fetch(ctx context.Context) ([]byte, error) {
	raw, err := s.cache.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("key %s: %w", s.key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	return []byte(raw), nil
}
