package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerOptionsKeepDefaultsForZeroValues(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithBrokers(nil),
		WithDelivery(0, "", 0),
		WithBatching(0, 0, 0),
		WithTimeouts(0, 0),
	} {
		opt(&cfg)
	}
	assert.Equal(t, defaultProducerConfig(), cfg)

	WithBatching(10, 2048, time.Second)(&cfg)
	WithDelivery(1, "zstd", 5)(&cfg)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 2048, cfg.BatchBytes)
	assert.Equal(t, time.Second, cfg.BatchTimeout)
	assert.Equal(t, 1, cfg.RequiredAcks)
	assert.Equal(t, "zstd", cfg.Compression)
	assert.Equal(t, 5, cfg.MaxAttempts)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]string{"symbol": "AAPL"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"AAPL"}`, string(b))

	b, _ = encodeValue("raw")
	assert.Equal(t, "raw", string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression("unknown"))
}
