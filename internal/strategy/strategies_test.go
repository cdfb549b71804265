package strategy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

var testSymbol = models.SymbolRef{ID: 7, Ticker: "BTCUSDT", Exchange: "binance"}

// kindSource serves a fixed indicator value per kind.
type kindSource struct {
	values map[string]models.IndicatorValue
}

func (s *kindSource) GetLatestIndicator(_ context.Context, _ int64, _ domrepo.Timeframe, kind string) (models.IndicatorValue, error) {
	iv, ok := s.values[kind]
	if !ok {
		return models.IndicatorValue{}, domrepo.ErrDataUnavailable
	}
	return iv, nil
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func indicator(kind string) models.IndicatorValue {
	return models.IndicatorValue{
		SymbolID:  testSymbol.ID,
		Timeframe: "1h",
		Kind:      kind,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSMACrossoverDirections(t *testing.T) {
	cfg := Config{Name: "sma", Version: "1.0", Enabled: true, Weight: 1, MinConfidence: 0.3}

	iv := indicator("sma")
	iv.Fast, iv.Slow = 100.5, 100
	s, err := NewSMACrossover(cfg, &kindSource{values: map[string]models.IndicatorValue{"sma": iv}})
	if err != nil {
		t.Fatalf("new sma: %v", err)
	}
	res, err := s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Direction != models.DirectionBuy {
		t.Fatalf("expected buy, got %s", res.Direction)
	}
	// spread 0.005 against full strength at 0.02
	if !approx(res.Strength, 0.25) {
		t.Fatalf("unexpected strength %f", res.Strength)
	}
	if !approx(res.Confidence, 0.55) {
		t.Fatalf("unexpected confidence %f", res.Confidence)
	}

	iv.Fast, iv.Slow = 99, 100
	s, _ = NewSMACrossover(cfg, &kindSource{values: map[string]models.IndicatorValue{"sma": iv}})
	res, _ = s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if res.Direction != models.DirectionSell {
		t.Fatalf("expected sell, got %s", res.Direction)
	}
}

func TestSMACrossoverFlatSpreadIsNeutral(t *testing.T) {
	iv := indicator("sma")
	iv.Fast, iv.Slow = 100.01, 100
	s, _ := NewSMACrossover(
		Config{Name: "sma", Enabled: true, Weight: 1},
		&kindSource{values: map[string]models.IndicatorValue{"sma": iv}},
	)
	res, err := s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Direction != models.DirectionNeutral {
		t.Fatalf("expected neutral, got %s", res.Direction)
	}
	if !approx(res.Confidence, 0.3) {
		t.Fatalf("unexpected confidence %f", res.Confidence)
	}
}

func TestSMACrossoverMissingData(t *testing.T) {
	iv := indicator("sma")
	iv.Fast, iv.Slow = 100, 0
	s, _ := NewSMACrossover(
		Config{Name: "sma", Enabled: true, Weight: 1},
		&kindSource{values: map[string]models.IndicatorValue{"sma": iv}},
	)
	if _, err := s.Evaluate(context.Background(), testSymbol, domrepo.TF1h); !errors.Is(err, domrepo.ErrDataUnavailable) {
		t.Fatalf("expected data unavailable, got %v", err)
	}
}

func TestRSIReversion(t *testing.T) {
	cfg := Config{Name: "rsi", Enabled: true, Weight: 1}

	iv := indicator("rsi")
	iv.RSI = 20
	s, err := NewRSI(cfg, &kindSource{values: map[string]models.IndicatorValue{"rsi": iv}})
	if err != nil {
		t.Fatalf("new rsi: %v", err)
	}
	res, err := s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Direction != models.DirectionBuy {
		t.Fatalf("expected buy, got %s", res.Direction)
	}
	if !approx(res.Strength, (30.0-20.0)/30.0) {
		t.Fatalf("unexpected strength %f", res.Strength)
	}

	iv.RSI = 80
	s, _ = NewRSI(cfg, &kindSource{values: map[string]models.IndicatorValue{"rsi": iv}})
	res, _ = s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if res.Direction != models.DirectionSell {
		t.Fatalf("expected sell, got %s", res.Direction)
	}

	iv.RSI = 50
	s, _ = NewRSI(cfg, &kindSource{values: map[string]models.IndicatorValue{"rsi": iv}})
	res, _ = s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if res.Direction != models.DirectionNeutral {
		t.Fatalf("expected neutral, got %s", res.Direction)
	}
}

func TestRSIRejectsInvertedBands(t *testing.T) {
	_, err := NewRSI(
		Config{Name: "rsi", Enabled: true, Weight: 1, Params: map[string]float64{"oversold": 70, "overbought": 30}},
		&kindSource{},
	)
	if err == nil {
		t.Fatal("expected config error")
	}
}

func TestMACDMomentum(t *testing.T) {
	cfg := Config{Name: "macd", Enabled: true, Weight: 1}

	iv := indicator("macd")
	iv.Price = 100
	iv.MACD, iv.MACDSignal, iv.MACDHist = 1.0, 0.5, 0.5
	s, err := NewMACD(cfg, &kindSource{values: map[string]models.IndicatorValue{"macd": iv}})
	if err != nil {
		t.Fatalf("new macd: %v", err)
	}
	res, err := s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Direction != models.DirectionBuy {
		t.Fatalf("expected buy, got %s", res.Direction)
	}
	// relative histogram 0.005 against full strength at 0.01
	if !approx(res.Strength, 0.5) {
		t.Fatalf("unexpected strength %f", res.Strength)
	}
	// line and histogram agree, so the agreement bonus applies
	if !approx(res.Confidence, 0.8) {
		t.Fatalf("unexpected confidence %f", res.Confidence)
	}

	iv.MACD, iv.MACDHist = -1.0, -0.5
	s, _ = NewMACD(cfg, &kindSource{values: map[string]models.IndicatorValue{"macd": iv}})
	res, _ = s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if res.Direction != models.DirectionSell {
		t.Fatalf("expected sell, got %s", res.Direction)
	}

	iv.MACDHist = 0
	s, _ = NewMACD(cfg, &kindSource{values: map[string]models.IndicatorValue{"macd": iv}})
	res, _ = s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if res.Direction != models.DirectionNeutral {
		t.Fatalf("expected neutral, got %s", res.Direction)
	}
}

func TestBollingerReversion(t *testing.T) {
	cfg := Config{Name: "bollinger", Enabled: true, Weight: 1}

	iv := indicator("bollinger")
	iv.LowerBand, iv.MiddleBand, iv.UpperBand = 90, 100, 110
	iv.Price = 85
	s, err := NewBollinger(cfg, &kindSource{values: map[string]models.IndicatorValue{"bollinger": iv}})
	if err != nil {
		t.Fatalf("new bollinger: %v", err)
	}
	res, err := s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Direction != models.DirectionBuy {
		t.Fatalf("expected buy, got %s", res.Direction)
	}
	if !approx(res.Strength, 0.5) {
		t.Fatalf("unexpected strength %f", res.Strength)
	}
	if !approx(res.Confidence, 0.75) {
		t.Fatalf("unexpected confidence %f", res.Confidence)
	}

	iv.Price = 115
	s, _ = NewBollinger(cfg, &kindSource{values: map[string]models.IndicatorValue{"bollinger": iv}})
	res, _ = s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if res.Direction != models.DirectionSell {
		t.Fatalf("expected sell, got %s", res.Direction)
	}

	iv.Price = 100
	s, _ = NewBollinger(cfg, &kindSource{values: map[string]models.IndicatorValue{"bollinger": iv}})
	res, _ = s.Evaluate(context.Background(), testSymbol, domrepo.TF1h)
	if res.Direction != models.DirectionNeutral {
		t.Fatalf("expected neutral, got %s", res.Direction)
	}
}

func TestBollingerDegenerateBands(t *testing.T) {
	iv := indicator("bollinger")
	iv.Price = 100
	s, _ := NewBollinger(
		Config{Name: "bollinger", Enabled: true, Weight: 1},
		&kindSource{values: map[string]models.IndicatorValue{"bollinger": iv}},
	)
	if _, err := s.Evaluate(context.Background(), testSymbol, domrepo.TF1h); !errors.Is(err, domrepo.ErrDataUnavailable) {
		t.Fatalf("expected data unavailable, got %v", err)
	}
}

func TestFromConfigRejectsUnknownKind(t *testing.T) {
	if _, err := FromConfig("teleport", Config{Name: "x", Weight: 1}, &kindSource{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestFromConfigRejectsUnknownParams(t *testing.T) {
	cfg := Config{Name: "sma", Weight: 1, Params: map[string]float64{"lookback_days": 30}}
	if _, err := FromConfig(KindSMA, cfg, &kindSource{}); err == nil {
		t.Fatal("expected error for unrecognized param")
	}
}
