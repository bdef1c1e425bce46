package kafka

import "time"

// ProducerConfig holds writer settings for NewProducer. Options ignore zero
// values so an unset config key keeps the default.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	Async        bool
	// HashByKey routes every message with the same key (the symbol) to one
	// partition so per-instrument events stay ordered.
	HashByKey bool
}

func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: 50 * time.Millisecond,
		HashByKey:    true,
	}
}

type ProducerOption func(*ProducerConfig)

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) {
		if len(brokers) > 0 {
			c.Brokers = brokers
		}
	}
}

// WithDelivery sets acks (-1 waits for all in-sync replicas), compression
// codec and writer retry attempts.
func WithDelivery(acks int, compression string, attempts int) ProducerOption {
	return func(c *ProducerConfig) {
		if acks != 0 {
			c.RequiredAcks = acks
		}
		if compression != "" {
			c.Compression = compression
		}
		if attempts > 0 {
			c.MaxAttempts = attempts
		}
	}
}

// WithBatching bounds a batch by message count, bytes and linger time.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if bytes > 0 {
			c.BatchBytes = bytes
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if write > 0 {
			c.WriteTimeout = write
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithAsync makes Publish return before the broker acknowledges.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}
