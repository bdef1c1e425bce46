package usecase

import (
	"context"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	applogger "SentiTrade/pkg/logger"
)

const (
	DefaultObservationLimit = 50
	DefaultRetention        = 24 * time.Hour
)

// SentimentAggregator folds per-source observations into one weighted score.
// Confidence is carried on observations but does not affect weighting.
type SentimentAggregator struct {
	reader    domrepo.ObservationReader
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	limit     int
	retention time.Duration
	now       func() time.Time
}

type AggregatorOption func(*SentimentAggregator)

// WithObservationLimit caps how many recent observations are read per source.
func WithObservationLimit(n int) AggregatorOption {
	return func(a *SentimentAggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

// WithRetention sets how far back observations are considered.
func WithRetention(d time.Duration) AggregatorOption {
	return func(a *SentimentAggregator) {
		if d > 0 {
			a.retention = d
		}
	}
}

func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *SentimentAggregator) { a.now = now }
}

func NewSentimentAggregator(reader domrepo.ObservationReader, metrics domrepo.Metrics, logger *applogger.Logger, opts ...AggregatorOption) *SentimentAggregator {
	a := &SentimentAggregator{
		reader:    reader,
		metrics:   metrics,
		logger:    logger,
		limit:     DefaultObservationLimit,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns nil, nil when no configured source has data.
// It returns an error only when every configured source failed to read.
func (a *SentimentAggregator) Aggregate(ctx context.Context, instrument string, cfg models.InstrumentTradingConfig) (*models.AggregatedSentiment, error) {
	start := a.now()
	since := start.Add(-a.retention)
	sources := cfg.Sources()

	var (
		weighted    float64
		totalWeight float64
		failed      int
		lastErr     error
		scores      = make(map[string]float64, len(sources))
	)
	for _, src := range sources {
		obs, err := a.reader.Recent(ctx, instrument, src, since, a.limit)
		if err != nil {
			failed++
			lastErr = err
			a.metrics.RecordError("aggregate_read")
			a.logger.Warn("sentiment source read failed",
				applogger.String("instrument", instrument),
				applogger.String("source", src),
				applogger.Error(err),
			)
			continue
		}
		mean, n := a.meanScore(instrument, src, obs)
		if n == 0 {
			continue
		}
		w := cfg.SourceWeights[src]
		scores[src] = mean
		weighted += mean * w
		totalWeight += w
	}

	if len(sources) > 0 && failed == len(sources) {
		return nil, fmt.Errorf("aggregate %s: all %d sources failed: %w", instrument, failed, lastErr)
	}
	if totalWeight <= 0 {
		return nil, nil
	}

	agg := &models.AggregatedSentiment{
		Instrument:              instrument,
		WeightedScore:           weighted / totalWeight,
		ContributingSourceCount: len(scores),
		SourceScores:            scores,
		ComputedAt:              a.now(),
	}
	a.metrics.RecordAggregate(instrument, agg.WeightedScore, agg.ContributingSourceCount)
	a.metrics.RecordLatency("aggregate", a.now().Sub(start).Seconds())
	return agg, nil
}

func (a *SentimentAggregator) meanScore(instrument, source string, obs []models.SentimentObservation) (float64, int) {
	var sum float64
	n := 0
	for i, o := range obs {
		if i >= a.limit {
			break
		}
		if !o.Valid() {
			a.logger.Debug("skipping malformed observation",
				applogger.String("instrument", instrument),
				applogger.String("source", source),
				applogger.Float64("score", o.Score),
			)
			continue
		}
		sum += o.Score
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
