package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SignalFlow/internal/aggregation"
	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/strategy"
	"SignalFlow/pkg/logger"
)

var testSymbol = models.SymbolRef{ID: 7, Ticker: "BTCUSDT", Exchange: "binance"}

type nopMetrics struct{}

func (nopMetrics) RecordEvaluation(string, string)     {}
func (nopMetrics) RecordAggregation(_, _, _ string)    {}
func (nopMetrics) RecordRun(string, float64)           {}
func (nopMetrics) RecordNodeError(string)              {}
func (nopMetrics) RecordDelivery(string, string)       {}
func (nopMetrics) RecordSourceLatency(string, float64) {}

type emptySource struct{}

func (emptySource) GetLatestIndicator(context.Context, int64, domrepo.Timeframe, string) (models.IndicatorValue, error) {
	return models.IndicatorValue{}, domrepo.ErrDataUnavailable
}

type fakeStrategy struct {
	name string
	cfg  strategy.Config
	eval func(tf domrepo.Timeframe) (models.SignalResult, error)
}

func (s *fakeStrategy) Name() string                                 { return s.name }
func (s *fakeStrategy) Config() strategy.Config                      { return s.cfg }
func (s *fakeStrategy) RequiredIndicators() []string                 { return nil }
func (s *fakeStrategy) SupportedTimeframes() []domrepo.Timeframe     { return domrepo.OrderedTimeframes() }
func (s *fakeStrategy) Evaluate(_ context.Context, symbol models.SymbolRef, tf domrepo.Timeframe) (models.SignalResult, error) {
	r, err := s.eval(tf)
	if err != nil {
		return models.SignalResult{}, err
	}
	r.Strategy = s.name
	r.Symbol = symbol
	r.Timeframe = string(tf)
	return r, nil
}

func fixedSignal(dir models.SignalDirection, strength, confidence float64) func(domrepo.Timeframe) (models.SignalResult, error) {
	return func(domrepo.Timeframe) (models.SignalResult, error) {
		return models.SignalResult{
			Direction:  dir,
			Strength:   strength,
			Confidence: confidence,
			Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}, nil
	}
}

func newTestService(t *testing.T, strategies ...*fakeStrategy) (*SignalService, *strategy.Registry) {
	t.Helper()
	reg := strategy.NewRegistry()
	for _, s := range strategies {
		s.cfg.Name = s.name
		s.cfg.Enabled = true
		if s.cfg.Weight == 0 {
			s.cfg.Weight = 1.0
		}
		if err := reg.Register(s); err != nil {
			t.Fatalf("register %s: %v", s.name, err)
		}
	}
	engine, err := aggregation.NewEngine(aggregation.DefaultConfig())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	svc := NewSignalService(reg, engine, aggregation.NewMultiTimeframe(nil, 0.3),
		emptySource{}, nopMetrics{}, logger.Nop(), time.Second, 4)
	return svc, reg
}

func TestEvaluateSignalAggregates(t *testing.T) {
	svc, _ := newTestService(t,
		&fakeStrategy{name: "alpha", eval: fixedSignal(models.DirectionBuy, 0.8, 0.9)},
		&fakeStrategy{name: "beta", eval: fixedSignal(models.DirectionBuy, 0.6, 0.7)},
	)

	got, err := svc.EvaluateSignal(context.Background(), testSymbol, domrepo.TF1h)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.Direction != models.DirectionBuy {
		t.Fatalf("expected buy, got %s (reason %q)", got.Direction, got.Reason())
	}
	if len(got.Strategies) != 2 {
		t.Fatalf("expected both strategies, got %v", got.Strategies)
	}
}

func TestEvaluateSignalExcludesFailingStrategy(t *testing.T) {
	svc, _ := newTestService(t,
		&fakeStrategy{name: "alpha", eval: fixedSignal(models.DirectionBuy, 0.8, 0.9)},
		&fakeStrategy{name: "beta", eval: fixedSignal(models.DirectionBuy, 0.6, 0.7)},
		&fakeStrategy{name: "gamma", eval: func(domrepo.Timeframe) (models.SignalResult, error) {
			return models.SignalResult{}, errors.New("backend down")
		}},
	)

	got, err := svc.EvaluateSignal(context.Background(), testSymbol, domrepo.TF1h)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.Direction != models.DirectionBuy {
		t.Fatalf("expected buy from the surviving strategies, got %s", got.Direction)
	}
	if len(got.Strategies) != 2 {
		t.Fatalf("failing strategy must be excluded, got %v", got.Strategies)
	}
}

func TestEvaluateSignalRejectsUnknownTimeframe(t *testing.T) {
	svc, _ := newTestService(t,
		&fakeStrategy{name: "alpha", eval: fixedSignal(models.DirectionBuy, 0.8, 0.9)},
	)
	if _, err := svc.EvaluateSignal(context.Background(), testSymbol, "2h"); err == nil {
		t.Fatalf("expected error for unknown timeframe")
	}
}

func TestEvaluateMultiTimeframeRecordsErroredTimeframe(t *testing.T) {
	svc, _ := newTestService(t,
		&fakeStrategy{name: "alpha", eval: func(tf domrepo.Timeframe) (models.SignalResult, error) {
			if tf == domrepo.TF4h {
				return models.SignalResult{}, domrepo.ErrDataUnavailable
			}
			return fixedSignal(models.DirectionBuy, 0.8, 0.9)(tf)
		}},
		&fakeStrategy{name: "beta", eval: func(tf domrepo.Timeframe) (models.SignalResult, error) {
			if tf == domrepo.TF4h {
				return models.SignalResult{}, domrepo.ErrDataUnavailable
			}
			return fixedSignal(models.DirectionBuy, 0.6, 0.7)(tf)
		}},
	)

	got, err := svc.EvaluateMultiTimeframe(context.Background(), testSymbol,
		[]domrepo.Timeframe{domrepo.TF1h, domrepo.TF4h})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.Errors["4h"] == "" {
		t.Fatalf("expected 4h recorded as errored, got %v", got.Errors)
	}
	if _, ok := got.PerTimeframe["4h"]; ok {
		t.Fatalf("errored timeframe must not carry a verdict")
	}
	if got.Direction != models.DirectionBuy {
		t.Fatalf("expected buy, got %s", got.Direction)
	}
}

func TestRegisterStrategyLifecycle(t *testing.T) {
	svc, reg := newTestService(t)

	req := &models.RegisterStrategyRequest{
		Kind: "sma", Name: "sma-fast", Version: "1.0",
		Weight: 1.5, MinConfidence: 0.4,
	}
	cfg, err := svc.RegisterStrategy(req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if cfg.Weight != 1.5 || !cfg.Enabled {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, ok := reg.Get("sma-fast"); !ok {
		t.Fatalf("strategy not in registry")
	}

	if _, err := svc.RegisterStrategy(req); !errors.Is(err, strategy.ErrStrategyExists) {
		t.Fatalf("expected ErrStrategyExists, got %v", err)
	}

	if err := svc.UnregisterStrategy("sma-fast"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if err := svc.UnregisterStrategy("sma-fast"); !errors.Is(err, strategy.ErrStrategyNotFound) {
		t.Fatalf("expected ErrStrategyNotFound, got %v", err)
	}
}

func TestRegisterStrategyRejectsUnknownParams(t *testing.T) {
	svc, _ := newTestService(t)
	req := &models.RegisterStrategyRequest{
		Kind: "rsi", Name: "rsi-custom", Weight: 1.0,
		Params: map[string]float64{"lookback_days": 30},
	}
	if _, err := svc.RegisterStrategy(req); err == nil {
		t.Fatalf("expected unknown param rejection")
	}
}

func TestUpdateAggregationConfig(t *testing.T) {
	svc, _ := newTestService(t)

	updated, err := svc.UpdateAggregationConfig(&models.UpdateAggregationRequest{
		Method:              "consensus",
		MinStrategies:       3,
		ConsensusThreshold:  0.75,
		ConfidenceThreshold: 0.6,
		ConflictPenalty:     0.2,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Method != aggregation.Consensus || updated.MinStrategies != 3 {
		t.Fatalf("unexpected config: %+v", updated)
	}

	if _, err := svc.UpdateAggregationConfig(&models.UpdateAggregationRequest{Method: "magic"}); err == nil {
		t.Fatalf("expected rejection of unknown method")
	}
	if svc.GetAggregationInfo().Method != aggregation.Consensus {
		t.Fatalf("rejected update must not mutate the active config")
	}
}
