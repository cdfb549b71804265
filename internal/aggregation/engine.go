package aggregation

import (
	"sort"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/strategy"
)

// conflictEpsilon is the minimal strength above which an opposing result
// counts as a real conflict.
const conflictEpsilon = 0.05

// Aggregate combines the candidate results into one consensus signal using
// the active configuration. The pipeline order is a contract: filter by
// per-strategy minimum confidence, quorum check, method dispatch, conflict
// penalty, confidence floor. Deterministic and side-effect free for fixed
// inputs; the result timestamp is the latest candidate timestamp, not the
// wall clock.
func (e *Engine) Aggregate(symbol models.SymbolRef, tf domrepo.Timeframe, candidates []models.SignalResult, profiles map[string]strategy.Profile) models.AggregatedSignal {
	cfg := e.cfg.Load()

	survivors := make([]models.SignalResult, 0, len(candidates))
	filtered := make([]string, 0)
	for _, c := range candidates {
		if c.Confidence < profiles[c.Strategy].MinConfidence {
			filtered = append(filtered, c.Strategy)
			continue
		}
		survivors = append(survivors, c)
	}
	sort.Strings(filtered)

	out := models.AggregatedSignal{
		Symbol:    symbol,
		Timeframe: string(tf),
		Direction: models.DirectionNeutral,
		Timestamp: latestTimestamp(candidates),
		Details: map[string]interface{}{
			"method":     string(cfg.Method),
			"candidates": len(candidates),
			"survivors":  len(survivors),
			"filtered":   filtered,
		},
	}
	out.Strategies = participantNames(survivors)
	out.Results = resultsByName(survivors)

	// quorum: a normal, non-error outcome
	if len(survivors) < cfg.MinStrategies {
		out.Details["reason"] = models.ReasonInsufficientStrategies
		out.Details["min_strategies"] = cfg.MinStrategies
		return out
	}

	switch cfg.Method {
	case WeightedAverage:
		e.weighted(&out, cfg, survivors, profiles, false)
	case ConfidenceWeighted:
		e.weighted(&out, cfg, survivors, profiles, true)
	case MajorityVote:
		e.vote(&out, cfg, survivors, false)
	case Consensus:
		e.vote(&out, cfg, survivors, true)
	}

	if hasConflict(survivors) {
		out.Strength *= 1 - cfg.ConflictPenalty
		out.Confidence *= 1 - cfg.ConflictPenalty
		out.Details["conflict_penalty"] = cfg.ConflictPenalty
	}

	if out.Direction != models.DirectionNeutral && out.Confidence < cfg.ConfidenceThreshold {
		out.Details["reason"] = models.ReasonLowConfidence
		out.Details["rejected_direction"] = string(out.Direction)
		out.Details["rejected_strength"] = out.Strength
		out.Direction = models.DirectionNeutral
		out.Strength = 0
	}

	return out
}

// weighted implements the weighted-average and confidence-weighted methods.
// Direction-signed strengths are blended; the sign of the normalized score
// decides the verdict.
func (e *Engine) weighted(out *models.AggregatedSignal, cfg *Config, survivors []models.SignalResult, profiles map[string]strategy.Profile, byConfidence bool) {
	var score, confSum, weightSum float64
	weights := make(map[string]interface{}, len(survivors))

	for _, r := range survivors {
		var w float64
		if byConfidence {
			w = r.Confidence
		} else {
			w = profiles[r.Strategy].Weight
			if w == 0 {
				w = 1
			}
			if ow, ok := cfg.CustomWeights[r.Strategy]; ok {
				w *= ow
			}
		}
		weights[r.Strategy] = w
		score += r.Direction.Sign() * r.Strength * w
		confSum += r.Confidence * w
		weightSum += w
	}
	out.Details["weights"] = weights
	out.Details["total_weight"] = weightSum

	if weightSum == 0 {
		return
	}
	score /= weightSum
	out.Details["score"] = score

	switch {
	case score > 0:
		out.Direction = models.DirectionBuy
	case score < 0:
		out.Direction = models.DirectionSell
	default:
		return
	}
	out.Strength = score
	if score < 0 {
		out.Strength = -score
	}
	out.Confidence = confSum / weightSum
}

// vote implements majority-vote and, with requireConsensus, the consensus
// method. Ties break toward Neutral.
func (e *Engine) vote(out *models.AggregatedSignal, cfg *Config, survivors []models.SignalResult, requireConsensus bool) {
	buckets := map[models.SignalDirection][]models.SignalResult{}
	for _, r := range survivors {
		buckets[r.Direction] = append(buckets[r.Direction], r)
	}
	buy, sell := buckets[models.DirectionBuy], buckets[models.DirectionSell]
	out.Details["votes"] = map[string]interface{}{
		"buy":     len(buy),
		"sell":    len(sell),
		"neutral": len(buckets[models.DirectionNeutral]),
	}

	var winner []models.SignalResult
	var direction models.SignalDirection
	switch {
	case len(buy) > len(sell) && len(buy) > len(buckets[models.DirectionNeutral]):
		winner, direction = buy, models.DirectionBuy
	case len(sell) > len(buy) && len(sell) > len(buckets[models.DirectionNeutral]):
		winner, direction = sell, models.DirectionSell
	default:
		// neutral majority or tie
		return
	}

	fraction := float64(len(winner)) / float64(len(survivors))
	out.Details["winning_fraction"] = fraction
	if requireConsensus && fraction < cfg.ConsensusThreshold {
		out.Details["reason"] = models.ReasonNoConsensus
		out.Details["consensus_threshold"] = cfg.ConsensusThreshold
		return
	}

	var strengthSum, confSum float64
	for _, r := range winner {
		strengthSum += r.Strength
		confSum += r.Confidence
	}
	out.Direction = direction
	out.Strength = strengthSum / float64(len(winner))
	out.Confidence = confSum / float64(len(winner))
}

func hasConflict(survivors []models.SignalResult) bool {
	var buy, sell bool
	for _, r := range survivors {
		if r.Strength <= conflictEpsilon {
			continue
		}
		switch r.Direction {
		case models.DirectionBuy:
			buy = true
		case models.DirectionSell:
			sell = true
		}
	}
	return buy && sell
}

func participantNames(survivors []models.SignalResult) []string {
	names := make([]string, 0, len(survivors))
	for _, r := range survivors {
		names = append(names, r.Strategy)
	}
	sort.Strings(names)
	return names
}

func resultsByName(survivors []models.SignalResult) map[string]models.SignalResult {
	out := make(map[string]models.SignalResult, len(survivors))
	for _, r := range survivors {
		out[r.Strategy] = r
	}
	return out
}

func latestTimestamp(candidates []models.SignalResult) time.Time {
	var latest time.Time
	for _, c := range candidates {
		if c.Timestamp.After(latest) {
			latest = c.Timestamp
		}
	}
	return latest
}
