package strategy

import (
	"context"
	"fmt"
	"sort"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

// Strategy is one pluggable signal generator. Evaluate reads the latest
// indicator state for the symbol/timeframe and returns one directional
// verdict. Data-unavailable conditions are returned as errors wrapping
// domrepo.ErrDataUnavailable; the caller excludes the strategy from the
// candidate set instead of aborting the evaluation of the others.
type Strategy interface {
	Name() string
	Config() Config
	RequiredIndicators() []string
	SupportedTimeframes() []domrepo.Timeframe
	Evaluate(ctx context.Context, symbol models.SymbolRef, tf domrepo.Timeframe) (models.SignalResult, error)
}

// Config holds per-strategy tunable parameters. Replaced wholesale to
// reconfigure a strategy, never partially mutated while an evaluation of
// that strategy is in flight.
type Config struct {
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Version       string             `json:"version"`
	Enabled       bool               `json:"enabled"`
	Weight        float64            `json:"weight"`         // default contribution to weighted aggregation
	MinConfidence float64            `json:"min_confidence"` // results below this are dropped pre-aggregation
	Params        map[string]float64 `json:"params,omitempty"`
}

// Param returns a tuning parameter or the given default.
func (c Config) Param(key string, def float64) float64 {
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

func (c Config) validate(recognized []string) error {
	if c.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if c.Weight <= 0 {
		return fmt.Errorf("strategy %s: weight must be positive", c.Name)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("strategy %s: min_confidence must be in [0,1]", c.Name)
	}
	allowed := make(map[string]bool, len(recognized))
	for _, k := range recognized {
		allowed[k] = true
	}
	unknown := make([]string, 0)
	for k := range c.Params {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("strategy %s: unrecognized params %v", c.Name, unknown)
	}
	return nil
}

// FromConfig builds a strategy of the given kind. Unknown kinds and invalid
// configuration are rejected immediately, never silently defaulted.
func FromConfig(kind string, cfg Config, source domrepo.IndicatorSource) (Strategy, error) {
	switch kind {
	case KindSMA:
		return NewSMACrossover(cfg, source)
	case KindRSI:
		return NewRSI(cfg, source)
	case KindMACD:
		return NewMACD(cfg, source)
	case KindBollinger:
		return NewBollinger(cfg, source)
	default:
		return nil, fmt.Errorf("unknown strategy kind: %s", kind)
	}
}

// Strategy kinds accepted by FromConfig.
const (
	KindSMA       = "sma"
	KindRSI       = "rsi"
	KindMACD      = "macd"
	KindBollinger = "bollinger"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func newResult(cfg Config, signalType string, symbol models.SymbolRef, tf domrepo.Timeframe, iv models.IndicatorValue) models.SignalResult {
	return models.SignalResult{
		Strategy:   cfg.Name,
		SignalType: signalType,
		Direction:  models.DirectionNeutral,
		Timestamp:  iv.Timestamp,
		Timeframe:  string(tf),
		Symbol:     symbol,
		Details:    map[string]interface{}{},
	}
}
