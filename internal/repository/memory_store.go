package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
)

// MemoryStore keeps observations, positions, trades and journal rows in process.
// It backs dry runs and tests when no database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	observations map[string][]models.SentimentObservation
	positions    map[string]models.Position
	trades       []models.Trade
	orderIDs     map[string]struct{}
	decisions    []models.DecisionRecord
	maxJournal   int
	seq          uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		observations: make(map[string][]models.SentimentObservation),
		positions:    make(map[string]models.Position),
		orderIDs:     make(map[string]struct{}),
		maxJournal:   10000,
	}
}

func obsKey(instrument, source string) string { return instrument + "|" + source }

func (m *MemoryStore) SaveObservation(_ context.Context, obs *models.SentimentObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := obsKey(obs.Instrument, obs.Source)
	m.observations[k] = append(m.observations[k], *obs)
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, instrument, source string, since time.Time, limit int) ([]models.SentimentObservation, error) {
	m.mu.RLock()
	src := m.observations[obsKey(instrument, source)]
	out := make([]models.SentimentObservation, 0, len(src))
	for _, o := range src {
		if !since.IsZero() && o.ObservedAt.Before(since) {
			continue
		}
		out = append(out, o)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpsertPosition(_ context.Context, p *models.Position) error {
	m.mu.Lock()
	m.positions[p.Instrument] = *p
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListPositions(_ context.Context) ([]models.Position, error) {
	m.mu.RLock()
	out := make([]models.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out, nil
}

func (m *MemoryStore) InsertTrade(_ context.Context, t *models.Trade) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.BrokerOrderID != "" {
		if _, dup := m.orderIDs[t.BrokerOrderID]; dup {
			return false, nil
		}
		m.orderIDs[t.BrokerOrderID] = struct{}{}
	}
	m.seq++
	t.ID = m.seq
	m.trades = append(m.trades, *t)
	return true, nil
}

func (m *MemoryStore) ListTrades(_ context.Context, instrument string, limit int) ([]models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trade, 0, len(m.trades))
	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if instrument != "" && t.Instrument != instrument {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Record(_ context.Context, recs []models.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, recs...)
	if over := len(m.decisions) - m.maxJournal; over > 0 {
		m.decisions = append([]models.DecisionRecord(nil), m.decisions[over:]...)
	}
	return nil
}

// Decisions returns a copy of the journal.
func (m *MemoryStore) Decisions() []models.DecisionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.DecisionRecord(nil), m.decisions...)
}
