package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	applogger "SentiTrade/pkg/logger"
)

// Insights serves the read-only views of the control surface.
type Insights struct {
	resolver   domrepo.ConfigResolver
	aggregator *SentimentAggregator
	reader     domrepo.ObservationReader
	broker     domrepo.Broker
	positions  domrepo.PositionStore
	trades     domrepo.TradeStore
	logger     *applogger.Logger
}

func NewInsights(
	resolver domrepo.ConfigResolver,
	aggregator *SentimentAggregator,
	reader domrepo.ObservationReader,
	broker domrepo.Broker,
	positions domrepo.PositionStore,
	trades domrepo.TradeStore,
	logger *applogger.Logger,
) *Insights {
	return &Insights{
		resolver:   resolver,
		aggregator: aggregator,
		reader:     reader,
		broker:     broker,
		positions:  positions,
		trades:     trades,
		logger:     logger,
	}
}

type SentimentView struct {
	Symbol    string                      `json:"symbol"`
	Aggregate *models.AggregatedSentiment `json:"aggregate"`
	Threshold float64                     `json:"sentiment_threshold"`
	Weights   map[string]float64          `json:"sentiment_weights"`
	Message   string                      `json:"message,omitempty"`
}

func (s *Insights) Sentiment(ctx context.Context, symbol string) (*SentimentView, error) {
	symbol = strings.ToUpper(symbol)
	set, err := s.resolver.Load(ctx)
	if err != nil {
		s.logger.Warn("trading config unavailable, using defaults", applogger.Error(err))
	}
	cfg := set.For(symbol)
	agg, err := s.aggregator.Aggregate(ctx, symbol, cfg)
	if err != nil {
		return nil, err
	}
	view := &SentimentView{Symbol: symbol, Aggregate: agg, Threshold: cfg.SentimentThreshold, Weights: cfg.SourceWeights}
	if agg == nil {
		view.Message = "No sentiment data available"
	}
	return view, nil
}

// Observations returns raw recent observations across all configured sources unless one is named.
func (s *Insights) Observations(ctx context.Context, symbol, source string, limit int) ([]models.SentimentObservation, error) {
	symbol = strings.ToUpper(symbol)
	source = strings.ToLower(strings.TrimSpace(source))
	since := time.Now().Add(-DefaultRetention)
	if source != "" {
		return s.reader.Recent(ctx, symbol, source, since, limit)
	}
	set, err := s.resolver.Load(ctx)
	if err != nil {
		s.logger.Warn("trading config unavailable, using defaults", applogger.Error(err))
	}
	var out []models.SentimentObservation
	for _, src := range set.For(symbol).Sources() {
		obs, err := s.reader.Recent(ctx, symbol, src, since, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, obs...)
	}
	sortObservations(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Portfolio returns live broker positions, or the mirror when the broker is unreachable.
func (s *Insights) Portfolio(ctx context.Context) ([]models.Position, bool, error) {
	live, err := s.broker.ListPositions(ctx)
	if err == nil {
		for i := range live {
			live[i].TotalValue = live[i].Quantity.Mul(live[i].CurrentPrice)
		}
		return live, true, nil
	}
	s.logger.Warn("broker positions unavailable, serving mirror", applogger.Error(err))
	mirror, merr := s.positions.ListPositions(ctx)
	if merr != nil {
		return nil, false, merr
	}
	return mirror, false, nil
}

func (s *Insights) Trades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	return s.trades.ListTrades(ctx, strings.ToUpper(symbol), limit)
}

func sortObservations(obs []models.SentimentObservation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].ObservedAt.After(obs[j].ObservedAt)
	})
}
