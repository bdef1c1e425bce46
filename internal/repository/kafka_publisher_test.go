package repository

import (
	"testing"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTradeEvent(t *testing.T) {
	score := 0.61
	ev := TradeEvent(&models.Trade{
		ID:             7,
		Instrument:     "AAPL",
		Side:           models.SideBuy,
		Quantity:       decimal.NewFromInt(29),
		Price:          decimal.RequireFromString("333.34"),
		Notional:       decimal.RequireFromString("9666.86"),
		SentimentScore: &score,
		BrokerOrderID:  "ord-1",
		Status:         "filled",
		ExecutedAt:     time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC),
	})
	assert.Equal(t, "trade_executed", ev["type"])
	assert.Equal(t, "29", ev["quantity"])
	assert.Equal(t, "9666.86", ev["total_amount"])
	assert.Equal(t, 0.61, ev["sentiment_score"])
	assert.Equal(t, "2024-05-01T14:30:00.000000", ev["executed_at"])

	ev = TradeEvent(&models.Trade{Instrument: "TSLA", Side: models.SideSell})
	_, ok := ev["sentiment_score"]
	assert.False(t, ok)
}

func TestJournalSchema(t *testing.T) {
	stmts := JournalSchema("sentitrade", "")
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "sentitrade.decision_journal")
	assert.Contains(t, stmts[1], "ENGINE = MergeTree")
}
