package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	sentiment   *prometheus.GaugeVec
	sources     *prometheus.GaugeVec
	decisions   *prometheus.CounterVec
	orders      *prometheus.CounterVec
	positions   prometheus.Gauge
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		sentiment: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentitrade_sentiment_score",
				Help: "Last aggregated sentiment score per instrument",
			},
			[]string{"symbol"},
		),
		sources: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentitrade_sentiment_sources",
				Help: "Number of sources that contributed to the last aggregate",
			},
			[]string{"symbol"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_decisions_total",
				Help: "Decisions taken by the engine",
			},
			[]string{"symbol", "action"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_orders_total",
				Help: "Orders submitted to the brokerage by outcome",
			},
			[]string{"side", "result"},
		),
		positions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentitrade_positions",
				Help: "Positions mirrored by the last reconciliation",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentitrade_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordAggregate(symbol string, score float64, sources int) {
	r.sentiment.WithLabelValues(symbol).Set(score)
	r.sources.WithLabelValues(symbol).Set(float64(sources))
}

func (r *Recorder) RecordDecision(symbol, action string) {
	r.decisions.WithLabelValues(symbol, action).Inc()
}

func (r *Recorder) RecordOrder(side, result string) {
	r.orders.WithLabelValues(side, result).Inc()
}

func (r *Recorder) RecordPositions(count int) {
	r.positions.Set(float64(count))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordAggregate(string, float64, int) {}
func (Nop) RecordDecision(string, string)        {}
func (Nop) RecordOrder(string, string)           {}
func (Nop) RecordPositions(int)                  {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLatency(string, float64)        {}
