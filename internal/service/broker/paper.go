package broker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
	"SentiTrade/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// PaperBroker fills market orders immediately at the oracle price and keeps
// positions in memory. Used for dry runs and tests.
type PaperBroker struct {
	prices repository.PriceOracle
	now    func() time.Time

	mu        sync.Mutex
	seq       int64
	cash      decimal.Decimal
	unlimited bool
	orders    map[string]*models.Order
	positions map[string]*models.Position
}

// NewPaperBroker starts with cash as buying power. cash <= 0 disables the
// buying power check entirely.
func NewPaperBroker(prices repository.PriceOracle, cash decimal.Decimal) *PaperBroker {
	return &PaperBroker{
		prices:    prices,
		now:       time.Now,
		cash:      cash,
		unlimited: !cash.IsPositive(),
		orders:    make(map[string]*models.Order),
		positions: make(map[string]*models.Position),
	}
}

func (p *PaperBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("paper: %w: quantity must be positive", models.ErrOrderRejected)
	}
	price, err := p.prices.CurrentPrice(ctx, req.Instrument)
	if err != nil {
		return nil, fmt.Errorf("paper: %w: %v", models.ErrBrokerUnavailable, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.positions[req.Instrument]
	notional := req.Quantity.Mul(price)
	switch req.Side {
	case models.SideBuy:
		if !p.unlimited && notional.GreaterThan(p.cash) {
			return nil, fmt.Errorf("paper: %w: insufficient buying power", models.ErrOrderRejected)
		}
		if pos == nil {
			pos = &models.Position{Instrument: req.Instrument}
			p.positions[req.Instrument] = pos
		}
		cost := pos.Quantity.Mul(pos.AveragePrice).Add(notional)
		pos.Quantity = pos.Quantity.Add(req.Quantity)
		pos.AveragePrice = cost.Div(pos.Quantity)
		if !p.unlimited {
			p.cash = p.cash.Sub(notional)
		}
	case models.SideSell:
		if pos == nil || req.Quantity.GreaterThan(pos.Quantity) {
			return nil, fmt.Errorf("paper: %w: insufficient quantity", models.ErrOrderRejected)
		}
		pos.Quantity = pos.Quantity.Sub(req.Quantity)
		if pos.Quantity.IsZero() {
			delete(p.positions, req.Instrument)
		}
		if !p.unlimited {
			p.cash = p.cash.Add(notional)
		}
	default:
		return nil, fmt.Errorf("paper: %w: unknown side %q", models.ErrOrderRejected, req.Side)
	}

	p.seq++
	order := &models.Order{
		ID:             "paper-" + strconv.FormatInt(p.seq, 10),
		ClientOrderID:  req.ClientOrderID,
		Instrument:     req.Instrument,
		Side:           req.Side,
		Quantity:       req.Quantity,
		FilledQuantity: req.Quantity,
		FilledAvgPrice: price,
		Status:         "filled",
		SubmittedAt:    p.now().UTC(),
	}
	p.orders[order.ID] = order
	cp := *order
	return &cp, nil
}

func (p *PaperBroker) GetOrder(_ context.Context, id string) (*models.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[id]
	if !ok {
		return nil, fmt.Errorf("paper order %s: %w", id, models.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (p *PaperBroker) ListPositions(ctx context.Context) ([]models.Position, error) {
	p.mu.Lock()
	out := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	for i := range out {
		// keep the fill price when no quote is available
		current, err := p.prices.CurrentPrice(ctx, out[i].Instrument)
		if err != nil || !current.IsPositive() {
			current = out[i].AveragePrice
		}
		out[i].CurrentPrice = current
		out[i].TotalValue = out[i].Quantity.Mul(current)
		out[i].UnrealizedPnL = current.Sub(out[i].AveragePrice).Mul(out[i].Quantity)
	}
	return out, nil
}

// Cash returns remaining buying power. It is meaningless for an unlimited broker.
func (p *PaperBroker) Cash() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}
