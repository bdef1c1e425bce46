package price

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"SentiTrade/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Static serves fixed prices. Set can update them at runtime.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(prices map[string]float64) *Static {
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for sym, p := range prices {
		s.prices[strings.ToUpper(sym)] = decimal.NewFromFloat(p)
	}
	return s
}

func (s *Static) Set(instrument string, price decimal.Decimal) {
	s.mu.Lock()
	s.prices[strings.ToUpper(instrument)] = price
	s.mu.Unlock()
}

func (s *Static) CurrentPrice(_ context.Context, instrument string) (decimal.Decimal, error) {
	s.mu.RLock()
	p, ok := s.prices[strings.ToUpper(instrument)]
	s.mu.RUnlock()
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %w", instrument, models.ErrPriceUnavailable)
	}
	return p, nil
}
