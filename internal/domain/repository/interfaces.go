package repository

import (
	"context"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/shopspring/decimal"
)

// ObservationReader returns the most recent observations for one (instrument, source),
// newest first, observed at or after since.
type ObservationReader interface {
	Recent(ctx context.Context, instrument, source string, since time.Time, limit int) ([]models.SentimentObservation, error)
}

// ObservationWriter stores scored observations produced upstream.
type ObservationWriter interface {
	SaveObservation(ctx context.Context, obs *models.SentimentObservation) error
}

// PositionStore is the local mirror of broker positions, keyed by instrument.
type PositionStore interface {
	UpsertPosition(ctx context.Context, p *models.Position) error
	ListPositions(ctx context.Context) ([]models.Position, error)
}

// TradeStore is append-only. InsertTrade reports false when the broker order id already exists.
type TradeStore interface {
	InsertTrade(ctx context.Context, t *models.Trade) (bool, error)
	ListTrades(ctx context.Context, instrument string, limit int) ([]models.Trade, error)
}

type DecisionJournal interface {
	Record(ctx context.Context, recs []models.DecisionRecord) error
}

type TradePublisher interface {
	PublishTrade(ctx context.Context, t *models.Trade) error
	Close() error
}

// Broker is the brokerage order execution API.
type Broker interface {
	SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListPositions(ctx context.Context) ([]models.Position, error)
}

type PriceOracle interface {
	CurrentPrice(ctx context.Context, instrument string) (decimal.Decimal, error)
}

// ConfigResolver loads the trading document. The returned set is never nil;
// on error it carries built-in defaults.
type ConfigResolver interface {
	Load(ctx context.Context) (*models.TradingConfigSet, error)
}

// InstrumentLocker serializes execution per instrument.
type InstrumentLocker interface {
	Acquire(ctx context.Context, instrument string) (release func(), err error)
}

type Metrics interface {
	RecordAggregate(instrument string, score float64, sources int)
	RecordDecision(instrument string, action string)
	RecordOrder(side string, result string)
	RecordPositions(count int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
