package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	applogger "SentiTrade/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Phase string

const (
	PhaseIdle          Phase = "IDLE"
	PhaseLoadingConfig Phase = "LOADING_CONFIG"
	PhaseAggregating   Phase = "AGGREGATING"
	PhaseDeciding      Phase = "DECIDING"
	PhaseExecuting     Phase = "EXECUTING"
	PhaseReconciling   Phase = "RECONCILING"
)

var ErrCycleRunning = errors.New("trading cycle already running")

// InstrumentResult is what one instrument produced in one cycle.
type InstrumentResult struct {
	Instrument string                      `json:"symbol"`
	Stage      Phase                       `json:"stage"`
	Aggregate  *models.AggregatedSentiment `json:"aggregate,omitempty"`
	Decision   models.Decision             `json:"decision"`
	Price      decimal.Decimal             `json:"price"`
	Trade      *models.Trade               `json:"trade,omitempty"`
	Err        error                       `json:"-"`
	Error      string                      `json:"error,omitempty"`
}

type CycleReport struct {
	ID           string             `json:"id"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	Results      []InstrumentResult `json:"results"`
	Reconciled   int                `json:"reconciled"`
	ReconcileErr string             `json:"reconcile_error,omitempty"`
	ConfigErr    string             `json:"config_error,omitempty"`
	Stopped      bool               `json:"stopped"`
}

// Trades counts results that produced a trade.
func (r *CycleReport) Trades() int {
	n := 0
	for _, res := range r.Results {
		if res.Trade != nil {
			n++
		}
	}
	return n
}

// Failures counts results that ended in an error.
func (r *CycleReport) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

type CycleStatus struct {
	Running    bool         `json:"running"`
	Phase      Phase        `json:"phase"`
	Instrument string       `json:"current_symbol,omitempty"`
	LastCycle  *CycleReport `json:"last_cycle,omitempty"`
}

// TradingCycle runs config → (aggregate → decide → execute) per instrument → reconcile.
// A failure on one instrument never aborts the others; reconciliation always runs.
type TradingCycle struct {
	resolver   domrepo.ConfigResolver
	aggregator *SentimentAggregator
	engine     *DecisionEngine
	executor   *OrderExecutor
	reconciler *PositionReconciler
	broker     domrepo.Broker
	positions  domrepo.PositionStore
	prices     domrepo.PriceOracle
	journal    domrepo.DecisionJournal
	metrics    domrepo.Metrics
	logger     *applogger.Logger

	delay           time.Duration
	instrumentTO    time.Duration
	reconcileTO     time.Duration
	fallbackSymbols []string

	running atomic.Bool
	mu      sync.RWMutex
	phase   Phase
	current string
	last    *CycleReport
}

type CycleOption func(*TradingCycle)

// WithInstrumentDelay pauses between instruments to spare upstream rate limits.
func WithInstrumentDelay(d time.Duration) CycleOption {
	return func(c *TradingCycle) { c.delay = d }
}

// WithInstrumentTimeout bounds the work on a single instrument.
func WithInstrumentTimeout(d time.Duration) CycleOption {
	return func(c *TradingCycle) {
		if d > 0 {
			c.instrumentTO = d
		}
	}
}

func WithReconcileTimeout(d time.Duration) CycleOption {
	return func(c *TradingCycle) {
		if d > 0 {
			c.reconcileTO = d
		}
	}
}

// WithFallbackSymbols lists instruments traded when the document names none.
func WithFallbackSymbols(symbols []string) CycleOption {
	return func(c *TradingCycle) { c.fallbackSymbols = symbols }
}

func WithDecisionJournal(j domrepo.DecisionJournal) CycleOption {
	return func(c *TradingCycle) { c.journal = j }
}

func NewTradingCycle(
	resolver domrepo.ConfigResolver,
	aggregator *SentimentAggregator,
	engine *DecisionEngine,
	executor *OrderExecutor,
	reconciler *PositionReconciler,
	broker domrepo.Broker,
	positions domrepo.PositionStore,
	prices domrepo.PriceOracle,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
	opts ...CycleOption,
) *TradingCycle {
	c := &TradingCycle{
		resolver:     resolver,
		aggregator:   aggregator,
		engine:       engine,
		executor:     executor,
		reconciler:   reconciler,
		broker:       broker,
		positions:    positions,
		prices:       prices,
		metrics:      metrics,
		logger:       logger,
		delay:        time.Second,
		instrumentTO: 2 * time.Minute,
		reconcileTO:  time.Minute,
		phase:        PhaseIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one cycle. Cancelling ctx stops before the next instrument;
// the instrument in flight finishes and reconciliation still runs.
func (c *TradingCycle) Run(ctx context.Context) (*CycleReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrCycleRunning
	}
	defer c.running.Store(false)
	defer c.setPhase(PhaseIdle, "")

	report := &CycleReport{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	bg := context.WithoutCancel(ctx)

	c.setPhase(PhaseLoadingConfig, "")
	set, err := c.resolver.Load(bg)
	if err != nil {
		report.ConfigErr = err.Error()
		c.metrics.RecordError("config_load")
		c.logger.Warn("trading config unavailable, using defaults", applogger.Error(err))
	}
	instruments := set.Instruments
	if len(instruments) == 0 {
		instruments = c.fallbackSymbols
	}
	if len(instruments) == 0 {
		c.logger.Warn("no instruments configured for trading")
	}

	held, posErr := c.currentPositions(bg)

	for i, instrument := range instruments {
		if ctx.Err() != nil {
			report.Stopped = true
			break
		}
		if i > 0 && c.delay > 0 && !sleepCtx(ctx, c.delay) {
			report.Stopped = true
			break
		}

		var res InstrumentResult
		if posErr != nil {
			res = InstrumentResult{
				Instrument: instrument,
				Stage:      PhaseLoadingConfig,
				Decision:   models.NoneDecision(instrument, "positions unavailable"),
				Err:        posErr,
			}
		} else {
			ictx, cancel := context.WithTimeout(bg, c.instrumentTO)
			res = c.processInstrument(ictx, set.For(instrument), held[instrument])
			cancel()
		}
		if res.Err != nil {
			res.Error = res.Err.Error()
			c.metrics.RecordError("instrument_" + string(res.Stage))
			c.logger.Warn("instrument processing failed",
				applogger.String("cycle_id", report.ID),
				applogger.String("instrument", res.Instrument),
				applogger.String("stage", string(res.Stage)),
				applogger.Error(res.Err),
			)
		}
		c.metrics.RecordDecision(instrument, string(res.Decision.Action))
		report.Results = append(report.Results, res)
	}

	c.setPhase(PhaseReconciling, "")
	rctx, cancel := context.WithTimeout(bg, c.reconcileTO)
	report.Reconciled, err = c.reconciler.Reconcile(rctx)
	cancel()
	if err != nil {
		report.ReconcileErr = err.Error()
		c.logger.Warn("reconciliation failed", applogger.String("cycle_id", report.ID), applogger.Error(err))
	}

	report.FinishedAt = time.Now().UTC()
	c.writeJournal(bg, report, set)
	c.metrics.RecordLatency("cycle", report.FinishedAt.Sub(report.StartedAt).Seconds())

	c.mu.Lock()
	c.last = report
	c.mu.Unlock()

	c.logger.Info("trading cycle completed",
		applogger.String("cycle_id", report.ID),
		applogger.Int("instruments", len(report.Results)),
		applogger.Int("trades", report.Trades()),
		applogger.Int("failures", report.Failures()),
		applogger.Int("reconciled", report.Reconciled),
		applogger.Bool("stopped", report.Stopped),
		applogger.Duration("took_ms", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (c *TradingCycle) processInstrument(ctx context.Context, cfg models.InstrumentTradingConfig, pos *models.Position) InstrumentResult {
	instrument := cfg.Instrument
	res := InstrumentResult{Instrument: instrument, Stage: PhaseAggregating}

	c.setPhase(PhaseAggregating, instrument)
	agg, err := c.aggregator.Aggregate(ctx, instrument, cfg)
	if err != nil {
		res.Decision = models.NoneDecision(instrument, ReasonNoData)
		res.Err = err
		return res
	}
	res.Aggregate = agg

	c.setPhase(PhaseDeciding, instrument)
	res.Stage = PhaseDeciding
	res.Decision = c.engine.Intent(instrument, agg, pos, cfg)
	if res.Decision.Action == models.ActionNone {
		return res
	}

	price, err := c.prices.CurrentPrice(ctx, instrument)
	if err != nil {
		res.Decision = models.NoneDecision(instrument, ReasonNoPrice)
		res.Err = fmt.Errorf("price %s: %w", instrument, err)
		return res
	}
	res.Price = price
	res.Decision = c.engine.Decide(instrument, agg, pos, cfg, price)
	side, ok := res.Decision.Action.Side()
	if !ok {
		return res
	}

	c.setPhase(PhaseExecuting, instrument)
	res.Stage = PhaseExecuting
	score := agg.WeightedScore
	c.logger.Info("signal triggered",
		applogger.String("instrument", instrument),
		applogger.String("action", string(res.Decision.Action)),
		applogger.String("quantity", res.Decision.Quantity.String()),
		applogger.Float64("score", score),
	)
	res.Trade, res.Err = c.executor.Execute(ctx, ExecuteRequest{
		Instrument:     instrument,
		Side:           side,
		Quantity:       res.Decision.Quantity,
		Price:          price,
		MaxNotional:    cfg.MaxNotional,
		SentimentScore: &score,
	})
	return res
}

// currentPositions prefers the broker and falls back to the mirror.
func (c *TradingCycle) currentPositions(ctx context.Context) (map[string]*models.Position, error) {
	list, err := c.broker.ListPositions(ctx)
	if err != nil {
		c.logger.Warn("broker positions unavailable, using mirror", applogger.Error(err))
		var merr error
		list, merr = c.positions.ListPositions(ctx)
		if merr != nil {
			return nil, fmt.Errorf("positions: broker: %w; mirror: %w", err, merr)
		}
	}
	out := make(map[string]*models.Position, len(list))
	for i := range list {
		out[list[i].Instrument] = &list[i]
	}
	return out, nil
}

func (c *TradingCycle) writeJournal(ctx context.Context, report *CycleReport, set *models.TradingConfigSet) {
	if c.journal == nil || len(report.Results) == 0 {
		return
	}
	recs := make([]models.DecisionRecord, 0, len(report.Results))
	for _, res := range report.Results {
		rec := models.DecisionRecord{
			CycleID:    report.ID,
			Instrument: res.Instrument,
			Threshold:  set.For(res.Instrument).SentimentThreshold,
			Action:     res.Decision.Action,
			Quantity:   res.Decision.Quantity,
			Price:      res.Price,
			Reason:     res.Decision.Reason,
			Outcome:    "ok",
			DecidedAt:  report.StartedAt,
		}
		if res.Aggregate != nil {
			score := res.Aggregate.WeightedScore
			rec.Score = &score
			rec.Sources = res.Aggregate.ContributingSourceCount
		}
		switch {
		case res.Err != nil:
			rec.Outcome = "error: " + res.Err.Error()
		case res.Trade != nil:
			rec.Outcome = "traded " + res.Trade.BrokerOrderID
		}
		recs = append(recs, rec)
	}
	jctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.journal.Record(jctx, recs); err != nil {
		c.metrics.RecordError("journal")
		c.logger.Warn("decision journal write failed", applogger.Error(err))
	}
}

func (c *TradingCycle) setPhase(p Phase, instrument string) {
	c.mu.Lock()
	c.phase = p
	c.current = instrument
	c.mu.Unlock()
}

func (c *TradingCycle) Status() CycleStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CycleStatus{
		Running:    c.running.Load(),
		Phase:      c.phase,
		Instrument: c.current,
		LastCycle:  c.last,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
