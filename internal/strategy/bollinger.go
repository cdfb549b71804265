package strategy

import (
	"context"
	"fmt"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

// Bollinger signals mean reversion on band breaches: a close below the
// lower band is bullish, above the upper band bearish.
type Bollinger struct {
	cfg    Config
	source domrepo.IndicatorSource
}

func NewBollinger(cfg Config, source domrepo.IndicatorSource) (*Bollinger, error) {
	if err := cfg.validate([]string{"period", "std_dev"}); err != nil {
		return nil, err
	}
	return &Bollinger{cfg: cfg, source: source}, nil
}

func (s *Bollinger) Name() string                 { return s.cfg.Name }
func (s *Bollinger) Config() Config               { return s.cfg }
func (s *Bollinger) RequiredIndicators() []string { return []string{"bollinger"} }

func (s *Bollinger) SupportedTimeframes() []domrepo.Timeframe {
	return domrepo.OrderedTimeframes()
}

func (s *Bollinger) Evaluate(ctx context.Context, symbol models.SymbolRef, tf domrepo.Timeframe) (models.SignalResult, error) {
	iv, err := s.source.GetLatestIndicator(ctx, symbol.ID, tf, "bollinger")
	if err != nil {
		return models.SignalResult{}, fmt.Errorf("%s evaluate %s/%s: %w", s.cfg.Name, symbol.Ticker, tf, err)
	}
	width := iv.UpperBand - iv.LowerBand
	if width <= 0 || iv.Price == 0 {
		return models.SignalResult{}, fmt.Errorf("%s evaluate %s/%s: degenerate bands: %w", s.cfg.Name, symbol.Ticker, tf, domrepo.ErrDataUnavailable)
	}

	res := newResult(s.cfg, "bollinger_reversion", symbol, tf, iv)
	res.Details["price"] = iv.Price
	res.Details["upper_band"] = iv.UpperBand
	res.Details["middle_band"] = iv.MiddleBand
	res.Details["lower_band"] = iv.LowerBand

	switch {
	case iv.Price < iv.LowerBand:
		res.Direction = models.DirectionBuy
		res.Strength = clamp01((iv.LowerBand - iv.Price) / width * 2)
	case iv.Price > iv.UpperBand:
		res.Direction = models.DirectionSell
		res.Strength = clamp01((iv.Price - iv.UpperBand) / width * 2)
	default:
		res.Confidence = 0.3
		return res, nil
	}
	res.Confidence = clamp01(0.5 + 0.5*res.Strength)
	return res, nil
}
