package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type Action string

const (
	ActionNone Action = "NONE"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Side maps a trading action to an order side. NONE has no side.
func (a Action) Side() (Side, bool) {
	switch a {
	case ActionBuy:
		return SideBuy, true
	case ActionSell:
		return SideSell, true
	}
	return "", false
}

// InstrumentTradingConfig holds the resolved parameters for one instrument.
type InstrumentTradingConfig struct {
	Instrument         string             `json:"symbol"`
	SourceWeights      map[string]float64 `json:"sentiment_weights"`
	SentimentThreshold float64            `json:"sentiment_threshold"`
	MaxNotional        decimal.Decimal    `json:"max_position_size"`
}

// Sources returns configured sources with a positive weight, sorted for stable iteration.
func (c InstrumentTradingConfig) Sources() []string {
	out := make([]string, 0, len(c.SourceWeights))
	for src, w := range c.SourceWeights {
		if w > 0 {
			out = append(out, src)
		}
	}
	sort.Strings(out)
	return out
}

// TradingConfigSet is one load of the trading document, resolved against defaults.
type TradingConfigSet struct {
	Defaults    InstrumentTradingConfig
	PerSymbol   map[string]InstrumentTradingConfig
	Instruments []string
	LoadedAt    time.Time
}

// For returns the config for instrument, falling back to the defaults.
func (s *TradingConfigSet) For(instrument string) InstrumentTradingConfig {
	if s == nil {
		return InstrumentTradingConfig{Instrument: instrument}
	}
	if c, ok := s.PerSymbol[instrument]; ok {
		return c
	}
	c := s.Defaults
	c.Instrument = instrument
	return c
}

// Decision is the outcome of evaluating one instrument. Quantity is zero for NONE.
type Decision struct {
	Instrument string          `json:"symbol"`
	Action     Action          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reason     string          `json:"reason"`
}

func NoneDecision(instrument, reason string) Decision {
	return Decision{Instrument: instrument, Action: ActionNone, Quantity: decimal.Zero, Reason: reason}
}

// Position mirrors the broker's holding in one instrument.
type Position struct {
	Instrument    string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	TotalValue    decimal.Decimal `json:"total_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// Held reports whether the position carries a positive quantity.
func (p *Position) Held() bool {
	return p != nil && p.Quantity.IsPositive()
}

// Trade is an executed order as recorded in the durable store.
type Trade struct {
	ID             uint64          `json:"id,omitempty"`
	Instrument     string          `json:"symbol"`
	Side           Side            `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Notional       decimal.Decimal `json:"total_amount"`
	SentimentScore *float64        `json:"sentiment_score,omitempty"`
	BrokerOrderID  string          `json:"broker_order_id"`
	ClientOrderID  string          `json:"client_order_id,omitempty"`
	Status         string          `json:"status"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

// OrderRequest is a market order submitted to the brokerage.
type OrderRequest struct {
	Instrument    string
	Side          Side
	Quantity      decimal.Decimal
	Type          string
	TimeInForce   string
	ClientOrderID string
}

// Order is the brokerage view of a submitted order.
type Order struct {
	ID             string
	ClientOrderID  string
	Instrument     string
	Side           Side
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	FilledAvgPrice decimal.Decimal
	Status         string
	SubmittedAt    time.Time
}

// DecisionRecord is one row of the decision journal.
type DecisionRecord struct {
	CycleID    string
	Instrument string
	Score      *float64
	Sources    int
	Threshold  float64
	Action     Action
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Reason     string
	Outcome    string
	DecidedAt  time.Time
}
