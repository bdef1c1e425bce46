package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"
	applogger "SentiTrade/pkg/logger"
	"SentiTrade/pkg/postgres"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live database when POSTGRES_TEST_URL is set.
func TestPostgresStoreIntegration(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	client, err := postgres.New(postgres.Option{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewPostgresStore(client.DB(), applogger.Nop())
	require.NoError(t, store.Migrate(ctx))

	sym := "T" + uuid.NewString()[:6]
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.SaveObservation(ctx, &models.SentimentObservation{
		Instrument: sym, Source: "news", Score: 0.3, Confidence: 0.8, ObservedAt: now,
		Metadata: map[string]interface{}{"url": "https://example.com"},
	}))
	obs, err := store.Recent(ctx, sym, "news", now.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "https://example.com", obs[0].Metadata["url"])

	pos := &models.Position{Instrument: sym, Quantity: decimal.NewFromInt(40), CurrentPrice: decimal.NewFromInt(10), LastUpdated: now}
	require.NoError(t, store.UpsertPosition(ctx, pos))
	pos.Quantity = decimal.NewFromInt(5)
	require.NoError(t, store.UpsertPosition(ctx, pos))
	positions, err := store.ListPositions(ctx)
	require.NoError(t, err)
	var found int
	for _, p := range positions {
		if p.Instrument == sym {
			found++
			assert.True(t, p.Quantity.Equal(decimal.NewFromInt(5)))
		}
	}
	assert.Equal(t, 1, found)

	tr := &models.Trade{Instrument: sym, Side: models.SideBuy, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10),
		Notional: decimal.NewFromInt(10), BrokerOrderID: uuid.NewString(), Status: "filled", ExecutedAt: now}
	ok, err := store.InsertTrade(ctx, tr)
	require.NoError(t, err)
	assert.True(t, ok)
	dup := *tr
	ok, err = store.InsertTrade(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, ok)

	trades, err := store.ListTrades(ctx, sym, 10)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}
