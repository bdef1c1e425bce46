package usecase

import (
	"context"
	"testing"

	"SentiTrade/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualTrade(t *testing.T) {
	b := newFakeBroker()
	trades := newFakeTrades()
	set := configSet("AAPL")
	tsla := instrumentConfig("TSLA", defaultWeights())
	tsla.MaxNotional = decimal.NewFromInt(500)
	set.PerSymbol["TSLA"] = tsla

	m := NewManualTrader(newTestExecutor(b, trades),
		fakePrices{"AAPL": decimal.NewFromInt(100), "TSLA": decimal.NewFromInt(200)},
		&fakeResolver{set: set}, nopLogger)

	t.Run("normalizes and executes", func(t *testing.T) {
		trade, err := m.Trade(context.Background(), &models.ManualTradeRequest{Symbol: " aapl ", Side: "buy", Quantity: 5})
		require.NoError(t, err)
		assert.Equal(t, "AAPL", trade.Instrument)
		assert.Equal(t, models.SideBuy, trade.Side)
		assert.Equal(t, "500", trade.Notional.String())
	})

	t.Run("per-instrument cap applies", func(t *testing.T) {
		_, err := m.Trade(context.Background(), &models.ManualTradeRequest{Symbol: "TSLA", Side: "BUY", Quantity: 3})
		assert.ErrorIs(t, err, models.ErrExceedsCap)
	})

	t.Run("unknown price", func(t *testing.T) {
		_, err := m.Trade(context.Background(), &models.ManualTradeRequest{Symbol: "MSFT", Side: "BUY", Quantity: 1})
		assert.ErrorIs(t, err, models.ErrPriceUnavailable)
	})

	assert.Equal(t, 1, trades.count())
}
