package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
	applogger "SentiTrade/pkg/logger"
	"SentiTrade/pkg/metrics"

	"github.com/shopspring/decimal"
)

var nopLogger = applogger.Nop()

type fakeReader struct {
	mu   sync.Mutex
	data map[string][]models.SentimentObservation // instrument/source
	errs map[string]error                         // by source
}

func newFakeReader() *fakeReader {
	return &fakeReader{data: map[string][]models.SentimentObservation{}, errs: map[string]error{}}
}

func (r *fakeReader) add(instrument, source string, scores ...float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	key := instrument + "/" + source
	for i, s := range scores {
		r.data[key] = append(r.data[key], models.SentimentObservation{
			Instrument: instrument,
			Source:     source,
			Score:      s,
			Confidence: 0.9,
			ObservedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}
}

func (r *fakeReader) Recent(_ context.Context, instrument, source string, since time.Time, limit int) ([]models.SentimentObservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[source]; err != nil {
		return nil, err
	}
	var out []models.SentimentObservation
	for _, o := range r.data[instrument+"/"+source] {
		if o.ObservedAt.Before(since) {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeBroker struct {
	mu        sync.Mutex
	seq       int
	fixedID   string
	blankID   bool
	polls     int
	fillPrice decimal.Decimal
	submitErr map[string]error
	listErr   error
	positions []models.Position
	submitted []models.OrderRequest
	onSubmit  func()
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{submitErr: map[string]error{}}
}

func (b *fakeBroker) SubmitOrder(_ context.Context, req models.OrderRequest) (*models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, req)
	if b.onSubmit != nil {
		b.onSubmit()
	}
	if err := b.submitErr[req.Instrument]; err != nil {
		return nil, err
	}
	b.seq++
	id := b.fixedID
	if id == "" && !b.blankID {
		id = fmt.Sprintf("ord-%d", b.seq)
	}
	return &models.Order{
		ID:            id,
		ClientOrderID: req.ClientOrderID,
		Instrument:    req.Instrument,
		Side:          req.Side,
		Quantity:      req.Quantity,
		Status:        "new",
		SubmittedAt:   time.Now().UTC(),
	}, nil
}

func (b *fakeBroker) GetOrder(_ context.Context, id string) (*models.Order, error) {
	b.mu.Lock()
	b.polls++
	b.mu.Unlock()
	return &models.Order{ID: id, Status: "filled", FilledAvgPrice: b.fillPrice}, nil
}

func (b *fakeBroker) ListPositions(context.Context) ([]models.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]models.Position(nil), b.positions...), nil
}

func (b *fakeBroker) submissions() []models.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.OrderRequest(nil), b.submitted...)
}

type fakeTrades struct {
	mu        sync.Mutex
	byOrder   map[string]models.Trade
	insertErr error
}

func newFakeTrades() *fakeTrades {
	return &fakeTrades{byOrder: map[string]models.Trade{}}
}

func (s *fakeTrades) InsertTrade(_ context.Context, t *models.Trade) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if _, ok := s.byOrder[t.BrokerOrderID]; ok {
		return false, nil
	}
	s.byOrder[t.BrokerOrderID] = *t
	return true, nil
}

func (s *fakeTrades) ListTrades(_ context.Context, instrument string, limit int) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trade
	for _, t := range s.byOrder {
		if instrument == "" || t.Instrument == instrument {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BrokerOrderID < out[j].BrokerOrderID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTrades) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byOrder)
}

type fakePositions struct {
	mu      sync.Mutex
	rows    map[string]models.Position
	upserts int
	listErr error
}

func newFakePositions() *fakePositions {
	return &fakePositions{rows: map[string]models.Position{}}
}

func (s *fakePositions) UpsertPosition(_ context.Context, p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[p.Instrument] = *p
	s.upserts++
	return nil
}

func (s *fakePositions) ListPositions(context.Context) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Position, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out, nil
}

type fakePrices map[string]decimal.Decimal

func (p fakePrices) CurrentPrice(_ context.Context, instrument string) (decimal.Decimal, error) {
	v, ok := p[instrument]
	if !ok {
		return decimal.Zero, models.ErrPriceUnavailable
	}
	return v, nil
}

type fakeResolver struct {
	set     *models.TradingConfigSet
	err     error
	entered chan struct{}
	release chan struct{}
}

func (r *fakeResolver) Load(ctx context.Context) (*models.TradingConfigSet, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	return r.set, r.err
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

type fakeJournal struct {
	mu   sync.Mutex
	recs []models.DecisionRecord
}

func (j *fakeJournal) Record(_ context.Context, recs []models.DecisionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, recs...)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
}

func (p *fakePublisher) PublishTrade(_ context.Context, t *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, t.BrokerOrderID)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeSink struct {
	mu  sync.Mutex
	got []models.SentimentObservation
	err error
}

func (s *fakeSink) SaveObservation(_ context.Context, obs *models.SentimentObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, *obs)
	return nil
}

// instrumentConfig builds a config with the given weights, threshold 0.6 and a 10000 cap.
func instrumentConfig(instrument string, weights map[string]float64) models.InstrumentTradingConfig {
	return models.InstrumentTradingConfig{
		Instrument:         instrument,
		SourceWeights:      weights,
		SentimentThreshold: 0.6,
		MaxNotional:        decimal.NewFromInt(10000),
	}
}

func defaultWeights() map[string]float64 {
	return map[string]float64{"twitter": 0.4, "reddit": 0.3, "news": 0.3}
}

func configSet(instruments ...string) *models.TradingConfigSet {
	defaults := instrumentConfig("", defaultWeights())
	return &models.TradingConfigSet{
		Defaults:    defaults,
		PerSymbol:   map[string]models.InstrumentTradingConfig{},
		Instruments: instruments,
		LoadedAt:    time.Now(),
	}
}

func newTestExecutor(b *fakeBroker, trades *fakeTrades, opts ...ExecutorOption) *OrderExecutor {
	opts = append([]ExecutorOption{WithSettleWait(0)}, opts...)
	return NewOrderExecutor(b, trades, noopLocker{}, metrics.Nop{}, nopLogger, decimal.NewFromInt(10000), opts...)
}
