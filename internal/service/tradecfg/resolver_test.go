package tradecfg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"SentiTrade/internal/domain/models"
	"SentiTrade/pkg/cache"
	applogger "SentiTrade/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `{
  "trading": {
    "general": {"max_position_size": 8000, "sentiment_threshold": 0.5},
    "sentiment_weights": {"twitter": 0.5, "reddit": 0.5, "spam": -1},
    "symbols": {
      "tsla": {"sentiment_threshold": 0.7, "max_position_size": 5000},
      "AAPL": {},
      "NVDA": {"weights": {"News": 1.0}, "sentiment_threshold": 3}
    }
  }
}`

func defaults() Defaults {
	return Defaults{SentimentThreshold: 0.6, MaxNotional: decimal.NewFromInt(10000)}
}

func TestParseFieldFallback(t *testing.T) {
	r := NewResolver(NewFileSource("unused"), defaults(), applogger.Nop())
	set, err := r.Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"TSLA", "AAPL", "NVDA"}, set.Instruments)

	tsla := set.For("TSLA")
	assert.Equal(t, 0.7, tsla.SentimentThreshold)
	assert.True(t, decimal.NewFromInt(5000).Equal(tsla.MaxNotional))
	assert.Equal(t, map[string]float64{"twitter": 0.5, "reddit": 0.5}, tsla.SourceWeights)

	aapl := set.For("AAPL")
	assert.Equal(t, 0.5, aapl.SentimentThreshold)
	assert.True(t, decimal.NewFromInt(8000).Equal(aapl.MaxNotional))

	nvda := set.For("NVDA")
	assert.Equal(t, map[string]float64{"news": 1.0}, nvda.SourceWeights)
	// out of range threshold falls back to general
	assert.Equal(t, 0.5, nvda.SentimentThreshold)

	other := set.For("AMZN")
	assert.Equal(t, "AMZN", other.Instrument)
	assert.Equal(t, 0.5, other.SentimentThreshold)
}

func TestParseYAMLDocument(t *testing.T) {
	r := NewResolver(NewFileSource("unused"), defaults(), applogger.Nop())
	set, err := r.Parse([]byte("trading:\n  symbols:\n    MSFT:\n      max_position_size: 2500\n"))
	require.NoError(t, err)
	msft := set.For("MSFT")
	assert.Equal(t, 0.6, msft.SentimentThreshold)
	assert.True(t, decimal.NewFromInt(2500).Equal(msft.MaxNotional))
	assert.Equal(t, BuiltinWeights, msft.SourceWeights)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	r := NewResolver(NewFileSource(filepath.Join(t.TempDir(), "nope.json")), defaults(), applogger.Nop())
	set, err := r.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfigMissing))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	require.NotNil(t, set)
	assert.Empty(t, set.Instruments)
	assert.Equal(t, 0.6, set.For("AAPL").SentimentThreshold)
	assert.Equal(t, BuiltinWeights, set.For("AAPL").SourceWeights)
}

func TestLoadRereadsFileEachTime(t *testing.T) {
	p := filepath.Join(t.TempDir(), "trading.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"trading":{"symbols":{"AAPL":{}}}}`), 0o644))
	r := NewResolver(NewFileSource(p), defaults(), applogger.Nop())

	set, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, set.Instruments)

	require.NoError(t, os.WriteFile(p, []byte(`{"trading":{"symbols":{"AAPL":{},"TSLA":{}}}}`), 0o644))
	set, err = r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "TSLA"}, set.Instruments)
}

func TestLoadMalformedDocument(t *testing.T) {
	p := filepath.Join(t.TempDir(), "trading.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"trading": {"symbols": [1, 2]}}`), 0o644))
	r := NewResolver(NewFileSource(p), defaults(), applogger.Nop())
	set, err := r.Load(context.Background())
	require.ErrorIs(t, err, models.ErrConfigMissing)
	assert.NotNil(t, set)
}

func TestCacheSource(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	src := NewCacheSource(mc, "trading_config")
	_, err := src.Fetch(ctx)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, mc.Set(ctx, "trading_config", `{"trading":{"symbols":{"AMD":{}}}}`, 0))
	r := NewResolver(src, defaults(), applogger.Nop())
	set, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AMD"}, set.Instruments)
}
