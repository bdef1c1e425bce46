package usecase

import (
	"context"
	"strings"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	applogger "SentiTrade/pkg/logger"

	"github.com/shopspring/decimal"
)

// ManualTrader executes operator-requested trades through the same executor and locks
// as the scheduled cycle, bypassing the decision engine.
type ManualTrader struct {
	executor *OrderExecutor
	prices   domrepo.PriceOracle
	resolver domrepo.ConfigResolver
	logger   *applogger.Logger
}

func NewManualTrader(executor *OrderExecutor, prices domrepo.PriceOracle, resolver domrepo.ConfigResolver, logger *applogger.Logger) *ManualTrader {
	return &ManualTrader{executor: executor, prices: prices, resolver: resolver, logger: logger}
}

func (m *ManualTrader) Trade(ctx context.Context, req *models.ManualTradeRequest) (*models.Trade, error) {
	instrument := strings.ToUpper(strings.TrimSpace(req.Symbol))
	side := models.Side(strings.ToUpper(req.Side))

	price, err := m.prices.CurrentPrice(ctx, instrument)
	if err != nil {
		return nil, &models.ExecutionError{Kind: models.ErrPriceUnavailable, Instrument: instrument, Err: err}
	}

	set, err := m.resolver.Load(ctx)
	if err != nil {
		m.logger.Warn("trading config unavailable, using defaults", applogger.Error(err))
	}

	return m.executor.Execute(ctx, ExecuteRequest{
		Instrument:     instrument,
		Side:           side,
		Quantity:       decimal.NewFromInt(req.Quantity),
		Price:          price,
		MaxNotional:    set.For(instrument).MaxNotional,
		SentimentScore: req.SentimentScore,
	})
}
