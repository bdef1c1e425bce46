package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buyRequest(qty int64) ExecuteRequest {
	return ExecuteRequest{
		Instrument:  "AAPL",
		Side:        models.SideBuy,
		Quantity:    decimal.NewFromInt(qty),
		Price:       decimal.NewFromInt(100),
		MaxNotional: decimal.NewFromInt(10000),
	}
}

func TestExecuteRecordsTrade(t *testing.T) {
	b := newFakeBroker()
	b.fillPrice = decimal.RequireFromString("100.25")
	trades := newFakeTrades()
	pub := &fakePublisher{}
	x := newTestExecutor(b, trades, WithTradePublisher(pub), WithClientOrderIDs(func() string { return "cid-1" }))

	score := 0.7
	req := buyRequest(10)
	req.SentimentScore = &score
	trade, err := x.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, "ord-1", trade.BrokerOrderID)
	assert.Equal(t, "cid-1", trade.ClientOrderID)
	assert.Equal(t, "FILLED", trade.Status)
	assert.Equal(t, "100.25", trade.Price.String())
	assert.Equal(t, "1002.5", trade.Notional.String())
	assert.Equal(t, &score, trade.SentimentScore)
	assert.Equal(t, 1, trades.count())
	assert.Equal(t, []string{"ord-1"}, pub.published)

	sub := b.submissions()
	require.Len(t, sub, 1)
	assert.Equal(t, "market", sub[0].Type)
	assert.Equal(t, "cid-1", sub[0].ClientOrderID)
}

func TestExecuteSameOrderIDRecordsOnce(t *testing.T) {
	b := newFakeBroker()
	b.fixedID = "dup-1"
	trades := newFakeTrades()
	pub := &fakePublisher{}
	x := newTestExecutor(b, trades, WithTradePublisher(pub))

	for i := 0; i < 2; i++ {
		trade, err := x.Execute(context.Background(), buyRequest(5))
		require.NoError(t, err)
		require.NotNil(t, trade)
		assert.Equal(t, "dup-1", trade.BrokerOrderID)
	}
	assert.Equal(t, 1, trades.count())
	assert.Len(t, pub.published, 1)
}

func TestExecuteBrokerFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"transient", errors.New("connection reset"), models.ErrBrokerUnavailable},
		{"unavailable", models.ErrBrokerUnavailable, models.ErrBrokerUnavailable},
		{"rejected", models.ErrOrderRejected, models.ErrOrderRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBroker()
			b.submitErr["AAPL"] = tt.err
			trades := newFakeTrades()

			trade, err := newTestExecutor(b, trades).Execute(context.Background(), buyRequest(5))
			assert.Nil(t, trade)
			assert.ErrorIs(t, err, tt.kind)
			var execErr *models.ExecutionError
			assert.True(t, errors.As(err, &execErr))
			assert.Zero(t, trades.count())
		})
	}
}

func TestExecuteEnforcesCapOnBuys(t *testing.T) {
	b := newFakeBroker()
	trades := newFakeTrades()
	x := newTestExecutor(b, trades)

	req := buyRequest(101) // 10100 > 10000
	_, err := x.Execute(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrExceedsCap)
	assert.Empty(t, b.submissions())

	req = buyRequest(20)
	req.MaxNotional = decimal.NewFromInt(1000)
	_, err = x.Execute(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrExceedsCap)

	sell := buyRequest(500)
	sell.Side = models.SideSell
	trade, err := x.Execute(context.Background(), sell)
	require.NoError(t, err)
	assert.Equal(t, models.SideSell, trade.Side)
}

func TestExecuteRejectsInvalidOrders(t *testing.T) {
	x := newTestExecutor(newFakeBroker(), newFakeTrades())
	bad := []ExecuteRequest{
		{Instrument: "", Side: models.SideBuy, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)},
		{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.Zero, Price: decimal.NewFromInt(1)},
		{Instrument: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(1), Price: decimal.Zero},
		{Instrument: "AAPL", Side: "HOLD", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)},
	}
	for _, req := range bad {
		_, err := x.Execute(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrInvalidOrder)
	}
}

func TestExecuteReturnsTradeWhenPersistenceFails(t *testing.T) {
	b := newFakeBroker()
	trades := newFakeTrades()
	trades.insertErr = errors.New("db down")

	trade, err := newTestExecutor(b, trades).Execute(context.Background(), buyRequest(5))
	require.NotNil(t, trade)
	assert.ErrorIs(t, err, models.ErrTradeNotRecorded)
	assert.Equal(t, "ord-1", trade.BrokerOrderID)
}

func TestExecuteFinishesAfterCallerCancels(t *testing.T) {
	b := newFakeBroker()
	trades := newFakeTrades()
	x := newTestExecutor(b, trades, WithSettleWait(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	b.onSubmit = cancel
	trade, err := x.Execute(ctx, buyRequest(1))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "FILLED", trade.Status)
	assert.Equal(t, 1, trades.count())
}

func TestExecuteKeysTradeByClientIDWhenBrokerOmitsOrderID(t *testing.T) {
	b := newFakeBroker()
	b.blankID = true
	trades := newFakeTrades()
	ids := []string{"cid-1", "cid-2"}
	next := 0
	x := newTestExecutor(b, trades, WithClientOrderIDs(func() string {
		id := ids[next]
		next++
		return id
	}))

	first, err := x.Execute(context.Background(), buyRequest(1))
	require.NoError(t, err)
	assert.Equal(t, "cid-1", first.BrokerOrderID)
	assert.Equal(t, "cid-1", first.ClientOrderID)

	second, err := x.Execute(context.Background(), buyRequest(1))
	require.NoError(t, err)
	assert.Equal(t, "cid-2", second.BrokerOrderID)

	assert.Equal(t, 2, trades.count())
	assert.Equal(t, 0, b.polls)
}
