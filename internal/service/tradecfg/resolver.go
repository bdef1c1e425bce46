package tradecfg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"SentiTrade/internal/domain/models"
	applogger "SentiTrade/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// BuiltinWeights apply when neither the instrument nor the document names any.
var BuiltinWeights = map[string]float64{"twitter": 0.4, "reddit": 0.3, "news": 0.3}

// Defaults are the process-wide fallbacks, usually taken from the app config.
type Defaults struct {
	SentimentThreshold float64
	MaxNotional        decimal.Decimal
	Weights            map[string]float64
}

type document struct {
	Trading struct {
		General struct {
			MaxPositionSize    *float64 `yaml:"max_position_size"`
			SentimentThreshold *float64 `yaml:"sentiment_threshold"`
		} `yaml:"general"`
		SentimentWeights map[string]float64 `yaml:"sentiment_weights"`
		Symbols          yaml.Node          `yaml:"symbols"`
	} `yaml:"trading"`
}

type symbolDoc struct {
	Weights            map[string]float64 `yaml:"weights"`
	SentimentThreshold *float64           `yaml:"sentiment_threshold"`
	MaxPositionSize    *float64           `yaml:"max_position_size"`
}

// Resolver loads the trading document fresh on each call and resolves every
// field instrument → general → built-in default.
type Resolver struct {
	source   Source
	defaults Defaults
	logger   *applogger.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewResolver(source Source, defaults Defaults, logger *applogger.Logger) *Resolver {
	if len(defaults.Weights) == 0 {
		defaults.Weights = BuiltinWeights
	}
	return &Resolver{
		source:   source,
		defaults: defaults,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Load never returns a nil set. On a fetch or parse failure the set holds the defaults
// and the error wraps models.ErrConfigMissing.
func (r *Resolver) Load(ctx context.Context) (*models.TradingConfigSet, error) {
	raw, err := r.source.Fetch(ctx)
	if err != nil {
		return r.fallback(), fmt.Errorf("trading config %s: %w", r.source.Name(), errors.Join(models.ErrConfigMissing, err))
	}
	set, err := r.Parse(raw)
	if err != nil {
		return r.fallback(), fmt.Errorf("trading config %s: %w", r.source.Name(), errors.Join(models.ErrConfigMissing, err))
	}
	return set, nil
}

// Parse resolves a raw document. JSON documents are valid YAML.
func (r *Resolver) Parse(raw []byte) (*models.TradingConfigSet, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	general := models.InstrumentTradingConfig{
		SourceWeights:      r.defaults.Weights,
		SentimentThreshold: r.defaults.SentimentThreshold,
		MaxNotional:        r.defaults.MaxNotional,
	}
	if w := r.cleanWeights("general", doc.Trading.SentimentWeights); len(w) > 0 {
		general.SourceWeights = w
	}
	if t, ok := r.threshold("general", doc.Trading.General.SentimentThreshold); ok {
		general.SentimentThreshold = t
	}
	if m, ok := r.notional("general", doc.Trading.General.MaxPositionSize); ok {
		general.MaxNotional = m
	}

	set := &models.TradingConfigSet{
		Defaults:  general,
		PerSymbol: make(map[string]models.InstrumentTradingConfig),
		LoadedAt:  r.now(),
	}

	node := &doc.Trading.Symbols
	if node.Kind == 0 {
		return set, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("trading.symbols must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		symbol := strings.ToUpper(strings.TrimSpace(node.Content[i].Value))
		if symbol == "" {
			continue
		}
		var sd symbolDoc
		if err := node.Content[i+1].Decode(&sd); err != nil {
			return nil, fmt.Errorf("symbol %s: %w", symbol, err)
		}
		cfg := general
		cfg.Instrument = symbol
		if w := r.cleanWeights(symbol, sd.Weights); len(w) > 0 {
			cfg.SourceWeights = w
		}
		if t, ok := r.threshold(symbol, sd.SentimentThreshold); ok {
			cfg.SentimentThreshold = t
		}
		if m, ok := r.notional(symbol, sd.MaxPositionSize); ok {
			cfg.MaxNotional = m
		}
		if _, dup := set.PerSymbol[symbol]; !dup {
			set.Instruments = append(set.Instruments, symbol)
		}
		set.PerSymbol[symbol] = cfg
	}
	return set, nil
}

func (r *Resolver) fallback() *models.TradingConfigSet {
	return &models.TradingConfigSet{
		Defaults: models.InstrumentTradingConfig{
			SourceWeights:      r.defaults.Weights,
			SentimentThreshold: r.defaults.SentimentThreshold,
			MaxNotional:        r.defaults.MaxNotional,
		},
		PerSymbol: map[string]models.InstrumentTradingConfig{},
		LoadedAt:  r.now(),
	}
}

func (r *Resolver) threshold(scope string, v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if err := r.validate.Var(*v, "gt=0,lte=1"); err != nil || math.IsNaN(*v) {
		r.logger.Warn("ignoring invalid sentiment_threshold",
			applogger.String("scope", scope),
			applogger.Float64("value", *v),
		)
		return 0, false
	}
	return *v, true
}

func (r *Resolver) notional(scope string, v *float64) (decimal.Decimal, bool) {
	if v == nil {
		return decimal.Zero, false
	}
	if err := r.validate.Var(*v, "gt=0"); err != nil || math.IsInf(*v, 0) || math.IsNaN(*v) {
		r.logger.Warn("ignoring invalid max_position_size",
			applogger.String("scope", scope),
			applogger.Float64("value", *v),
		)
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*v), true
}

// cleanWeights drops negative or non-finite weights. Sources are lower-cased.
func (r *Resolver) cleanWeights(scope string, in map[string]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for src, w := range in {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			r.logger.Warn("ignoring invalid source weight",
				applogger.String("scope", scope),
				applogger.String("source", src),
				applogger.Float64("weight", w),
			)
			continue
		}
		out[strings.ToLower(src)] = w
	}
	return out
}
