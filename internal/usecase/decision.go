package usecase

import (
	"fmt"

	"SentiTrade/internal/domain/models"

	"github.com/shopspring/decimal"
)

const (
	ReasonNoData       = "no data"
	ReasonNeutral      = "within neutral band"
	ReasonNoChange     = "no actionable position change"
	ReasonPriceTooHigh = "price too high for cap"
	ReasonNoPrice      = "price unavailable"
)

// DecisionEngine turns an aggregated score into BUY, SELL or NONE.
// Threshold comparisons are strict: a score equal to the threshold is neutral.
type DecisionEngine struct {
	globalCap decimal.Decimal
}

// NewDecisionEngine takes the process-wide notional cap. A non-positive cap means none.
func NewDecisionEngine(globalCap decimal.Decimal) *DecisionEngine {
	return &DecisionEngine{globalCap: globalCap}
}

// Intent applies the rules that do not depend on price. A BUY intent has zero quantity.
func (e *DecisionEngine) Intent(instrument string, agg *models.AggregatedSentiment, pos *models.Position, cfg models.InstrumentTradingConfig) models.Decision {
	if agg == nil {
		return models.NoneDecision(instrument, ReasonNoData)
	}
	score, threshold := agg.WeightedScore, cfg.SentimentThreshold

	switch {
	case score > threshold && !pos.Held():
		return models.Decision{
			Instrument: instrument,
			Action:     models.ActionBuy,
			Quantity:   decimal.Zero,
			Reason:     fmt.Sprintf("sentiment %.4f above threshold %.4f", score, threshold),
		}
	case score < -threshold && pos.Held():
		return models.Decision{
			Instrument: instrument,
			Action:     models.ActionSell,
			Quantity:   pos.Quantity,
			Reason:     fmt.Sprintf("sentiment %.4f below -%.4f", score, threshold),
		}
	case score > threshold || score < -threshold:
		return models.NoneDecision(instrument, ReasonNoChange)
	default:
		return models.NoneDecision(instrument, ReasonNeutral)
	}
}

// Decide completes the intent with sizing. BUY quantity is floor(cap / price).
func (e *DecisionEngine) Decide(instrument string, agg *models.AggregatedSentiment, pos *models.Position, cfg models.InstrumentTradingConfig, price decimal.Decimal) models.Decision {
	d := e.Intent(instrument, agg, pos, cfg)
	if d.Action != models.ActionBuy {
		return d
	}
	if !price.IsPositive() {
		return models.NoneDecision(instrument, ReasonNoPrice)
	}
	qty := e.PositionCap(cfg).Div(price).Floor()
	if !qty.IsPositive() {
		return models.NoneDecision(instrument, ReasonPriceTooHigh)
	}
	d.Quantity = qty
	return d
}

// PositionCap is the smaller of the instrument cap and the global cap, ignoring non-positive values.
func (e *DecisionEngine) PositionCap(cfg models.InstrumentTradingConfig) decimal.Decimal {
	return EffectiveCap(cfg.MaxNotional, e.globalCap)
}

func EffectiveCap(instrumentCap, globalCap decimal.Decimal) decimal.Decimal {
	switch {
	case instrumentCap.IsPositive() && globalCap.IsPositive():
		return decimal.Min(instrumentCap, globalCap)
	case instrumentCap.IsPositive():
		return instrumentCap
	case globalCap.IsPositive():
		return globalCap
	}
	return decimal.Zero
}
