package strategy

import (
	"context"
	"fmt"
	"math"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

// MACD signals on the histogram: MACD line above its signal line is
// bullish momentum, below is bearish.
type MACD struct {
	cfg    Config
	source domrepo.IndicatorSource
}

func NewMACD(cfg Config, source domrepo.IndicatorSource) (*MACD, error) {
	if err := cfg.validate([]string{"fast_period", "slow_period", "signal_period", "full_strength_hist"}); err != nil {
		return nil, err
	}
	return &MACD{cfg: cfg, source: source}, nil
}

func (s *MACD) Name() string                 { return s.cfg.Name }
func (s *MACD) Config() Config               { return s.cfg }
func (s *MACD) RequiredIndicators() []string { return []string{"macd"} }

func (s *MACD) SupportedTimeframes() []domrepo.Timeframe {
	return domrepo.OrderedTimeframes()
}

func (s *MACD) Evaluate(ctx context.Context, symbol models.SymbolRef, tf domrepo.Timeframe) (models.SignalResult, error) {
	iv, err := s.source.GetLatestIndicator(ctx, symbol.ID, tf, "macd")
	if err != nil {
		return models.SignalResult{}, fmt.Errorf("%s evaluate %s/%s: %w", s.cfg.Name, symbol.Ticker, tf, err)
	}
	if iv.Price == 0 {
		return models.SignalResult{}, fmt.Errorf("%s evaluate %s/%s: empty price: %w", s.cfg.Name, symbol.Ticker, tf, domrepo.ErrDataUnavailable)
	}

	// histogram normalized by price so strength is comparable across symbols
	fullHist := s.cfg.Param("full_strength_hist", 0.01)
	relHist := iv.MACDHist / iv.Price

	res := newResult(s.cfg, "macd_momentum", symbol, tf, iv)
	res.Details["macd"] = iv.MACD
	res.Details["macd_signal"] = iv.MACDSignal
	res.Details["macd_hist"] = iv.MACDHist

	if iv.MACDHist == 0 {
		res.Confidence = 0.3
		return res, nil
	}

	if iv.MACDHist > 0 {
		res.Direction = models.DirectionBuy
	} else {
		res.Direction = models.DirectionSell
	}
	res.Strength = clamp01(math.Abs(relHist) / fullHist)

	// a histogram that agrees with the MACD line sign is more trustworthy
	conf := 0.4 + 0.4*res.Strength
	if iv.MACD*iv.MACDHist > 0 {
		conf += 0.2
	}
	res.Confidence = clamp01(conf)
	return res, nil
}
