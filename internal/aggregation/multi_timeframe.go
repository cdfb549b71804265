package aggregation

import (
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

// TimeframeOutcome is one timeframe's aggregation outcome. Exactly one of
// Signal/Err is meaningful: an errored timeframe is excluded from both the
// score numerators and the weight denominator, so a single unavailable data
// source never dilutes the verdict of the remaining timeframes.
type TimeframeOutcome struct {
	Signal models.AggregatedSignal
	Err    error
}

// MultiTimeframe rolls per-timeframe verdicts up into one symbol-level
// verdict using the timeframe weight table.
type MultiTimeframe struct {
	weights        map[domrepo.Timeframe]float64
	directionFloor float64
}

// NewMultiTimeframe builds the roll-up layer. Zero or missing weights fall
// back to the default table; floor <= 0 falls back to 0.3.
func NewMultiTimeframe(weights map[domrepo.Timeframe]float64, directionFloor float64) *MultiTimeframe {
	if len(weights) == 0 {
		weights = domrepo.DefaultTimeframeWeights()
	}
	if directionFloor <= 0 {
		directionFloor = 0.3
	}
	return &MultiTimeframe{weights: weights, directionFloor: directionFloor}
}

// Rollup computes the symbol-level verdict over the given ordered timeframe
// list. Deterministic for fixed outcomes.
func (m *MultiTimeframe) Rollup(symbol models.SymbolRef, order []domrepo.Timeframe, outcomes map[domrepo.Timeframe]TimeframeOutcome) models.MultiTimeframeSignal {
	out := models.MultiTimeframeSignal{
		Symbol:       symbol,
		Direction:    models.DirectionNeutral,
		PerTimeframe: make(map[string]models.AggregatedSignal),
		Errors:       make(map[string]string),
	}

	var buyScore, sellScore, confSum, weightSum float64
	var latest time.Time

	for _, tf := range order {
		oc, ok := outcomes[tf]
		if !ok {
			continue
		}
		if oc.Err != nil {
			out.Errors[string(tf)] = oc.Err.Error()
			continue
		}

		w := m.weights[tf]
		if w == 0 {
			w = 1
		}
		out.PerTimeframe[string(tf)] = oc.Signal
		weightSum += w
		confSum += w * oc.Signal.Confidence
		switch oc.Signal.Direction {
		case models.DirectionBuy:
			buyScore += w * oc.Signal.Strength
		case models.DirectionSell:
			sellScore += w * oc.Signal.Strength
		}
		if oc.Signal.Timestamp.After(latest) {
			latest = oc.Signal.Timestamp
		}
	}

	out.Timestamp = latest
	if len(out.Errors) == 0 {
		out.Errors = nil
	}
	if weightSum == 0 {
		return out
	}

	out.BuyRatio = buyScore / weightSum
	out.SellRatio = sellScore / weightSum
	out.Confidence = confSum / weightSum

	switch {
	case out.BuyRatio > out.SellRatio && out.BuyRatio > m.directionFloor:
		out.Direction = models.DirectionBuy
	case out.SellRatio > out.BuyRatio && out.SellRatio > m.directionFloor:
		out.Direction = models.DirectionSell
	}
	return out
}
