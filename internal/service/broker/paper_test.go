package broker

import (
	"context"
	"testing"

	"SentiTrade/internal/domain/models"
	"SentiTrade/internal/service/price"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperBrokerRoundTrip(t *testing.T) {
	ctx := context.Background()
	prices := price.NewStatic(map[string]float64{"AAPL": 100})
	b := NewPaperBroker(prices, decimal.NewFromInt(10000))

	order, err := b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, "filled", order.Status)
	assert.True(t, order.FilledAvgPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, b.Cash().Equal(decimal.NewFromInt(9000)))

	got, err := b.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	prices.Set("AAPL", decimal.NewFromInt(110))
	positions, err := b.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].TotalValue.Equal(decimal.NewFromInt(1100)))
	assert.True(t, positions[0].UnrealizedPnL.Equal(decimal.NewFromInt(100)))

	_, err = b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideSell, Quantity: decimal.NewFromInt(10)})
	require.NoError(t, err)
	positions, err = b.ListPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPaperBrokerRejects(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(price.NewStatic(map[string]float64{"AAPL": 100}), decimal.NewFromInt(500))

	_, err := b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, models.ErrOrderRejected)

	_, err = b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideSell, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, models.ErrOrderRejected)

	_, err = b.SubmitOrder(ctx, models.OrderRequest{Instrument: "MSFT", Side: models.SideBuy, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, models.ErrBrokerUnavailable)

	_, err = b.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPaperBrokerRejectsOnceCashIsSpent(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(price.NewStatic(map[string]float64{"AAPL": 100}), decimal.NewFromInt(1000))

	_, err := b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.True(t, b.Cash().IsZero())

	_, err = b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(1000)})
	assert.ErrorIs(t, err, models.ErrOrderRejected)
	_, err = b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, models.ErrOrderRejected)

	// selling restores buying power
	_, err = b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideSell, Quantity: decimal.NewFromInt(4)})
	require.NoError(t, err)
	assert.True(t, b.Cash().Equal(decimal.NewFromInt(400)))
	_, err = b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(4)})
	require.NoError(t, err)
	assert.True(t, b.Cash().IsZero())
}

func TestPaperBrokerUnlimitedCash(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(price.NewStatic(map[string]float64{"AAPL": 100}), decimal.Zero)

	_, err := b.SubmitOrder(ctx, models.OrderRequest{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(1000000)})
	require.NoError(t, err)
	assert.True(t, b.Cash().IsZero())
}
