package price

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"SentiTrade/internal/domain/models"
	applogger "SentiTrade/pkg/logger"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// QuoteFunc fetches a single quote. quote.Get satisfies it.
type QuoteFunc func(symbol string) (*finance.Quote, error)

// Yahoo resolves the last traded price through Yahoo Finance.
type Yahoo struct {
	fetch   QuoteFunc
	timeout time.Duration
	logger  *applogger.Logger
}

type YahooOption func(*Yahoo)

func WithQuoteFunc(fn QuoteFunc) YahooOption {
	return func(y *Yahoo) { y.fetch = fn }
}

func WithQuoteTimeout(d time.Duration) YahooOption {
	return func(y *Yahoo) {
		if d > 0 {
			y.timeout = d
		}
	}
}

func NewYahoo(logger *applogger.Logger, opts ...YahooOption) *Yahoo {
	y := &Yahoo{fetch: quote.Get, timeout: 5 * time.Second, logger: logger}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) CurrentPrice(ctx context.Context, instrument string) (decimal.Decimal, error) {
	symbol := strings.ToUpper(strings.TrimSpace(instrument))
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	type result struct {
		q   *finance.Quote
		err error
	}
	ch := make(chan result, 1)
	// finance-go has no context support
	go func() {
		q, err := y.fetch(symbol)
		ch <- result{q, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("quote %s: %w: %v", symbol, models.ErrPriceUnavailable, ctx.Err())
	case res = <-ch:
	}
	if res.err != nil {
		y.logger.Warn("quote fetch failed", applogger.String("symbol", symbol), applogger.Error(res.err))
		return decimal.Zero, fmt.Errorf("quote %s: %w: %v", symbol, models.ErrPriceUnavailable, res.err)
	}
	if res.q == nil {
		return decimal.Zero, fmt.Errorf("quote %s: %w: empty response", symbol, models.ErrPriceUnavailable)
	}
	p := res.q.RegularMarketPrice
	if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return decimal.Zero, fmt.Errorf("quote %s: %w: price %v", symbol, models.ErrPriceUnavailable, p)
	}
	return decimal.NewFromFloat(p), nil
}
