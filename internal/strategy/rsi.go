package strategy

import (
	"context"
	"fmt"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

// RSI signals mean reversion on the relative strength index: oversold is
// bullish, overbought is bearish.
type RSI struct {
	cfg    Config
	source domrepo.IndicatorSource
}

func NewRSI(cfg Config, source domrepo.IndicatorSource) (*RSI, error) {
	if err := cfg.validate([]string{"period", "oversold", "overbought"}); err != nil {
		return nil, err
	}
	if cfg.Param("oversold", 30) >= cfg.Param("overbought", 70) {
		return nil, fmt.Errorf("strategy %s: oversold must be below overbought", cfg.Name)
	}
	return &RSI{cfg: cfg, source: source}, nil
}

func (s *RSI) Name() string                 { return s.cfg.Name }
func (s *RSI) Config() Config               { return s.cfg }
func (s *RSI) RequiredIndicators() []string { return []string{"rsi"} }

func (s *RSI) SupportedTimeframes() []domrepo.Timeframe {
	return domrepo.OrderedTimeframes()
}

func (s *RSI) Evaluate(ctx context.Context, symbol models.SymbolRef, tf domrepo.Timeframe) (models.SignalResult, error) {
	iv, err := s.source.GetLatestIndicator(ctx, symbol.ID, tf, "rsi")
	if err != nil {
		return models.SignalResult{}, fmt.Errorf("%s evaluate %s/%s: %w", s.cfg.Name, symbol.Ticker, tf, err)
	}
	if iv.RSI <= 0 || iv.RSI > 100 {
		return models.SignalResult{}, fmt.Errorf("%s evaluate %s/%s: rsi out of range: %w", s.cfg.Name, symbol.Ticker, tf, domrepo.ErrDataUnavailable)
	}

	oversold := s.cfg.Param("oversold", 30)
	overbought := s.cfg.Param("overbought", 70)

	res := newResult(s.cfg, "rsi_reversion", symbol, tf, iv)
	res.Details["rsi"] = iv.RSI
	res.Details["oversold"] = oversold
	res.Details["overbought"] = overbought

	switch {
	case iv.RSI < oversold:
		res.Direction = models.DirectionBuy
		res.Strength = clamp01((oversold - iv.RSI) / oversold)
	case iv.RSI > overbought:
		res.Direction = models.DirectionSell
		res.Strength = clamp01((iv.RSI - overbought) / (100 - overbought))
	default:
		res.Confidence = 0.3
		return res, nil
	}
	res.Confidence = clamp01(0.5 + 0.5*res.Strength)
	return res, nil
}
