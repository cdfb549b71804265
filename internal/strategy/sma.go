package strategy

import (
	"context"
	"fmt"
	"math"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

// SMACrossover signals on the spread between a fast and a slow moving
// average: fast above slow is bullish, below is bearish.
type SMACrossover struct {
	cfg    Config
	source domrepo.IndicatorSource
}

func NewSMACrossover(cfg Config, source domrepo.IndicatorSource) (*SMACrossover, error) {
	if err := cfg.validate([]string{"min_spread", "full_strength_spread"}); err != nil {
		return nil, err
	}
	return &SMACrossover{cfg: cfg, source: source}, nil
}

func (s *SMACrossover) Name() string                 { return s.cfg.Name }
func (s *SMACrossover) Config() Config               { return s.cfg }
func (s *SMACrossover) RequiredIndicators() []string { return []string{"sma"} }

func (s *SMACrossover) SupportedTimeframes() []domrepo.Timeframe {
	return domrepo.OrderedTimeframes()
}

func (s *SMACrossover) Evaluate(ctx context.Context, symbol models.SymbolRef, tf domrepo.Timeframe) (models.SignalResult, error) {
	iv, err := s.source.GetLatestIndicator(ctx, symbol.ID, tf, "sma")
	if err != nil {
		return models.SignalResult{}, fmt.Errorf("%s evaluate %s/%s: %w", s.cfg.Name, symbol.Ticker, tf, err)
	}
	if iv.Slow == 0 {
		return models.SignalResult{}, fmt.Errorf("%s evaluate %s/%s: empty slow average: %w", s.cfg.Name, symbol.Ticker, tf, domrepo.ErrDataUnavailable)
	}

	minSpread := s.cfg.Param("min_spread", 0.001)
	fullSpread := s.cfg.Param("full_strength_spread", 0.02)

	spread := (iv.Fast - iv.Slow) / iv.Slow
	res := newResult(s.cfg, "sma_crossover", symbol, tf, iv)
	res.Details["fast"] = iv.Fast
	res.Details["slow"] = iv.Slow
	res.Details["spread"] = spread

	if math.Abs(spread) < minSpread {
		res.Confidence = 0.3
		return res, nil
	}

	if spread > 0 {
		res.Direction = models.DirectionBuy
	} else {
		res.Direction = models.DirectionSell
	}
	res.Strength = clamp01(math.Abs(spread) / fullSpread)
	res.Confidence = clamp01(0.4 + 0.6*res.Strength)
	return res, nil
}
