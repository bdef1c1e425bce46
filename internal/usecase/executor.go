package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	applogger "SentiTrade/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecuteRequest is a sized order ready for submission.
type ExecuteRequest struct {
	Instrument     string
	Side           models.Side
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	MaxNotional    decimal.Decimal
	SentimentScore *float64
}

// OrderExecutor submits one market order, polls its status once and records the trade.
// Execution per instrument is serialized through the locker.
type OrderExecutor struct {
	broker       domrepo.Broker
	trades       domrepo.TradeStore
	publisher    domrepo.TradePublisher
	locker       domrepo.InstrumentLocker
	metrics      domrepo.Metrics
	logger       *applogger.Logger
	globalCap    decimal.Decimal
	settleWait   time.Duration
	orderTimeout time.Duration
	newID        func() string
	now          func() time.Time
}

type ExecutorOption func(*OrderExecutor)

// WithSettleWait sets how long to wait before the single status poll.
func WithSettleWait(d time.Duration) ExecutorOption {
	return func(x *OrderExecutor) { x.settleWait = d }
}

// WithOrderTimeout bounds each broker call made after submission.
func WithOrderTimeout(d time.Duration) ExecutorOption {
	return func(x *OrderExecutor) {
		if d > 0 {
			x.orderTimeout = d
		}
	}
}

// WithTradePublisher publishes recorded trades. Publishing is best effort.
func WithTradePublisher(p domrepo.TradePublisher) ExecutorOption {
	return func(x *OrderExecutor) { x.publisher = p }
}

func WithClientOrderIDs(fn func() string) ExecutorOption {
	return func(x *OrderExecutor) { x.newID = fn }
}

func NewOrderExecutor(
	broker domrepo.Broker,
	trades domrepo.TradeStore,
	locker domrepo.InstrumentLocker,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
	globalCap decimal.Decimal,
	opts ...ExecutorOption,
) *OrderExecutor {
	x := &OrderExecutor{
		broker:       broker,
		trades:       trades,
		locker:       locker,
		metrics:      metrics,
		logger:       logger,
		globalCap:    globalCap,
		settleWait:   time.Second,
		orderTimeout: 10 * time.Second,
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute places the order. Submission failures return an *models.ExecutionError and no trade is written.
// Once the broker accepted the order the trade is always returned; a persistence failure is
// reported alongside it.
func (x *OrderExecutor) Execute(ctx context.Context, req ExecuteRequest) (*models.Trade, error) {
	if req.Instrument == "" || !req.Quantity.IsPositive() || !req.Price.IsPositive() {
		return nil, &models.ExecutionError{Kind: models.ErrInvalidOrder, Instrument: req.Instrument}
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return nil, &models.ExecutionError{Kind: models.ErrInvalidOrder, Instrument: req.Instrument}
	}

	// Only buys add exposure; sells always liquidate what the broker holds.
	if req.Side == models.SideBuy {
		limit := EffectiveCap(req.MaxNotional, x.globalCap)
		notional := req.Quantity.Mul(req.Price)
		if !limit.IsPositive() || notional.GreaterThan(limit) {
			x.metrics.RecordOrder(string(req.Side), "cap_exceeded")
			x.logger.Warn("order exceeds position cap",
				applogger.String("instrument", req.Instrument),
				applogger.String("notional", notional.StringFixed(2)),
				applogger.String("cap", limit.StringFixed(2)),
			)
			return nil, &models.ExecutionError{Kind: models.ErrExceedsCap, Instrument: req.Instrument}
		}
	}

	release, err := x.locker.Acquire(ctx, req.Instrument)
	if err != nil {
		return nil, &models.ExecutionError{Kind: models.ErrInstrumentBusy, Instrument: req.Instrument, Err: err}
	}
	defer release()

	clientID := x.newID()
	start := x.now()
	order, err := x.broker.SubmitOrder(ctx, models.OrderRequest{
		Instrument:    req.Instrument,
		Side:          req.Side,
		Quantity:      req.Quantity,
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: clientID,
	})
	x.metrics.RecordLatency("order_submit", x.now().Sub(start).Seconds())
	if err != nil {
		kind := models.ErrBrokerUnavailable
		result := "error"
		if errors.Is(err, models.ErrOrderRejected) {
			kind = models.ErrOrderRejected
			result = "rejected"
		}
		x.metrics.RecordOrder(string(req.Side), result)
		return nil, &models.ExecutionError{Kind: kind, Instrument: req.Instrument, Err: err}
	}

	// The order is live at the broker from here on; finish recording it even if the caller stops.
	bg := context.WithoutCancel(ctx)
	if order.ClientOrderID == "" {
		order.ClientOrderID = clientID
	}
	status := order
	if order.ID == "" {
		// accepted without a broker id: key the trade by our client id, there is nothing to poll
		x.logger.Warn("broker returned no order id",
			applogger.String("instrument", req.Instrument),
			applogger.String("client_order_id", clientID),
		)
		order.ID = clientID
	} else {
		status = x.settle(ctx, bg, order)
	}

	price := req.Price
	if status.FilledAvgPrice.IsPositive() {
		price = status.FilledAvgPrice
	}
	trade := &models.Trade{
		Instrument:     req.Instrument,
		Side:           req.Side,
		Quantity:       req.Quantity,
		Price:          price,
		Notional:       req.Quantity.Mul(price),
		SentimentScore: req.SentimentScore,
		BrokerOrderID:  order.ID,
		ClientOrderID:  order.ClientOrderID,
		Status:         normalizeStatus(status.Status),
		ExecutedAt:     x.now().UTC(),
	}
	x.metrics.RecordOrder(string(req.Side), strings.ToLower(trade.Status))

	pctx, cancel := context.WithTimeout(bg, x.orderTimeout)
	defer cancel()
	inserted, err := x.trades.InsertTrade(pctx, trade)
	if err != nil {
		x.metrics.RecordError("trade_persist")
		x.logger.Error("trade persistence failed",
			applogger.String("instrument", req.Instrument),
			applogger.String("order_id", order.ID),
			applogger.Error(err),
		)
		return trade, &models.ExecutionError{Kind: models.ErrTradeNotRecorded, Instrument: req.Instrument, OrderID: order.ID, Err: err}
	}
	if !inserted {
		x.logger.Debug("trade already recorded",
			applogger.String("instrument", req.Instrument),
			applogger.String("order_id", order.ID),
		)
		return trade, nil
	}

	x.logger.Info("trade executed",
		applogger.String("instrument", trade.Instrument),
		applogger.String("side", string(trade.Side)),
		applogger.String("quantity", trade.Quantity.String()),
		applogger.String("price", trade.Price.StringFixed(2)),
		applogger.String("order_id", trade.BrokerOrderID),
		applogger.String("status", trade.Status),
	)

	if x.publisher != nil {
		if err := x.publisher.PublishTrade(pctx, trade); err != nil {
			x.metrics.RecordError("trade_publish")
			x.logger.Warn("trade event publish failed",
				applogger.String("order_id", trade.BrokerOrderID),
				applogger.Error(err),
			)
		}
	}
	return trade, nil
}

// settle waits once and polls the order status. The submitted order is returned on any failure.
func (x *OrderExecutor) settle(ctx, bg context.Context, order *models.Order) *models.Order {
	if x.settleWait > 0 {
		timer := time.NewTimer(x.settleWait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	gctx, cancel := context.WithTimeout(bg, x.orderTimeout)
	defer cancel()
	status, err := x.broker.GetOrder(gctx, order.ID)
	if err != nil || status == nil {
		x.logger.Warn("order status poll failed",
			applogger.String("instrument", order.Instrument),
			applogger.String("order_id", order.ID),
			applogger.Error(err),
		)
		return order
	}
	return status
}

func normalizeStatus(s string) string {
	if s == "" {
		return "SUBMITTED"
	}
	return strings.ToUpper(s)
}
