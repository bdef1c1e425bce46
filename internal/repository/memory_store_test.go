package repository

import (
	"context"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreObservations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveObservation(ctx, &models.SentimentObservation{
			Instrument: "AAPL", Source: "twitter", Score: float64(i) / 10, ObservedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.SaveObservation(ctx, &models.SentimentObservation{Instrument: "AAPL", Source: "news", ObservedAt: base}))

	got, err := s.Recent(ctx, "AAPL", "twitter", base.Add(time.Minute), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(4*time.Minute), got[0].ObservedAt)
	assert.Equal(t, base.Add(2*time.Minute), got[2].ObservedAt)

	none, err := s.Recent(ctx, "TSLA", "twitter", time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStoreTradesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tr := &models.Trade{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(1), BrokerOrderID: "ord-1"}

	ok, err := s.InsertTrade(ctx, tr)
	require.NoError(t, err)
	assert.True(t, ok)

	dup := *tr
	dup.ID = 0
	ok, err = s.InsertTrade(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.InsertTrade(ctx, &models.Trade{Instrument: "TSLA", BrokerOrderID: "ord-2"})
	require.NoError(t, err)

	all, err := s.ListTrades(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "TSLA", all[0].Instrument)

	aapl, err := s.ListTrades(ctx, "AAPL", 10)
	require.NoError(t, err)
	assert.Len(t, aapl, 1)
}

func TestMemoryStorePositionsUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpsertPosition(ctx, &models.Position{Instrument: "TSLA", Quantity: decimal.NewFromInt(40)}))
	require.NoError(t, s.UpsertPosition(ctx, &models.Position{Instrument: "AAPL", Quantity: decimal.NewFromInt(1)}))
	require.NoError(t, s.UpsertPosition(ctx, &models.Position{Instrument: "TSLA", Quantity: decimal.NewFromInt(10)}))

	got, err := s.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AAPL", got[0].Instrument)
	assert.True(t, got[1].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestMemoryStoreJournal(t *testing.T) {
	s := NewMemoryStore()
	s.maxJournal = 2
	require.NoError(t, s.Record(context.Background(), []models.DecisionRecord{
		{Instrument: "A"}, {Instrument: "B"}, {Instrument: "C"},
	}))
	got := s.Decisions()
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Instrument)
}
