package models

import "time"

// SignalDirection is the directional verdict of a strategy or an aggregation.
type SignalDirection string

const (
	DirectionBuy     SignalDirection = "buy"
	DirectionSell    SignalDirection = "sell"
	DirectionNeutral SignalDirection = "neutral"
)

// IsBullish reports whether the direction is a buy call.
func (d SignalDirection) IsBullish() bool { return d == DirectionBuy }

// IsBearish reports whether the direction is a sell call.
func (d SignalDirection) IsBearish() bool { return d == DirectionSell }

// Sign maps the direction onto a signed multiplier for weighted scoring.
func (d SignalDirection) Sign() float64 {
	switch d {
	case DirectionBuy:
		return 1
	case DirectionSell:
		return -1
	default:
		return 0
	}
}

// SymbolRef identifies the subject instrument of a signal.
type SymbolRef struct {
	ID       int64  `json:"id"`
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange"`
}

// SignalResult is one strategy's verdict for one (symbol, timeframe) pair at
// one evaluation instant. Created fresh per evaluation and never mutated.
type SignalResult struct {
	Strategy   string                 `json:"strategy"`
	SignalType string                 `json:"signal_type"`
	Direction  SignalDirection        `json:"direction"`
	Strength   float64                `json:"strength"`   // 0..1, size of the move
	Confidence float64                `json:"confidence"` // 0..1, trust in this reading
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Timeframe  string                 `json:"timeframe"`
	Symbol     SymbolRef              `json:"symbol"`
}

// Rejection reasons carried in AggregatedSignal details under "reason".
const (
	ReasonInsufficientStrategies = "insufficient_strategies"
	ReasonNoConsensus            = "no_consensus"
	ReasonLowConfidence          = "low_confidence"
)

// AggregatedSignal is the consensus verdict over one candidate set.
type AggregatedSignal struct {
	Symbol     SymbolRef               `json:"symbol"`
	Timeframe  string                  `json:"timeframe"`
	Direction  SignalDirection         `json:"direction"`
	Strength   float64                 `json:"strength"`
	Confidence float64                 `json:"confidence"`
	Strategies []string                `json:"strategies"`
	Results    map[string]SignalResult `json:"results,omitempty"`
	Details    map[string]interface{}  `json:"details"`
	Timestamp  time.Time               `json:"timestamp"`
}

// Reason returns the rejection reason, or "" for directional verdicts.
func (a AggregatedSignal) Reason() string {
	if a.Details == nil {
		return ""
	}
	if r, ok := a.Details["reason"].(string); ok {
		return r
	}
	return ""
}

// MultiTimeframeSignal is the symbol-level roll-up across timeframes.
type MultiTimeframeSignal struct {
	Symbol       SymbolRef                   `json:"symbol"`
	Direction    SignalDirection             `json:"direction"`
	BuyRatio     float64                     `json:"buy_ratio"`
	SellRatio    float64                     `json:"sell_ratio"`
	Confidence   float64                     `json:"confidence"`
	PerTimeframe map[string]AggregatedSignal `json:"per_timeframe"`
	Errors       map[string]string           `json:"errors,omitempty"`
	Timestamp    time.Time                   `json:"timestamp"`
}
