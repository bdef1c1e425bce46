package cache

import "time"

// RedisConfig holds the connection settings for NewRedisCache.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	DialTimeout  time.Duration
	Prefix       string
}

func defaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		Prefix:       "sentitrade",
	}
}

type RedisOption func(*RedisConfig)

func WithRedisAddr(host string, port int) RedisOption {
	return func(c *RedisConfig) {
		if host != "" {
			c.Host = host
		}
		if port > 0 {
			c.Port = port
		}
	}
}

func WithRedisAuth(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

// WithRedisPool overrides pool sizing; zero values keep the defaults.
func WithRedisPool(size, minIdle int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		if size > 0 {
			c.PoolSize = size
		}
		if minIdle > 0 {
			c.MinIdleConns = minIdle
		}
		if timeout > 0 {
			c.PoolTimeout = timeout
		}
	}
}

// WithRedisPrefix namespaces every key. An empty prefix disables namespacing.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxEntries int
	sweepEvery time.Duration
}

// WithMemoryMaxEntries bounds the store; the entry closest to expiry is
// dropped when full.
func WithMemoryMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

func WithMemorySweep(every time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if every > 0 {
			c.sweepEvery = every
		}
	}
}
