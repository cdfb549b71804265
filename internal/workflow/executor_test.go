package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalFlow/internal/aggregation"
	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/strategy"
	"SignalFlow/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordEvaluation(string, string)     {}
func (nopMetrics) RecordAggregation(_, _, _ string)    {}
func (nopMetrics) RecordRun(string, float64)           {}
func (nopMetrics) RecordNodeError(string)              {}
func (nopMetrics) RecordDelivery(string, string)       {}
func (nopMetrics) RecordSourceLatency(string, float64) {}

type stubStrategy struct {
	name string
	cfg  strategy.Config
	eval func(tf domrepo.Timeframe) (models.SignalResult, error)
}

func (s *stubStrategy) Name() string                { return s.name }
func (s *stubStrategy) Config() strategy.Config     { return s.cfg }
func (s *stubStrategy) RequiredIndicators() []string { return nil }
func (s *stubStrategy) SupportedTimeframes() []domrepo.Timeframe {
	return domrepo.OrderedTimeframes()
}
func (s *stubStrategy) Evaluate(_ context.Context, symbol models.SymbolRef, tf domrepo.Timeframe) (models.SignalResult, error) {
	r, err := s.eval(tf)
	if err != nil {
		return models.SignalResult{}, err
	}
	r.Strategy = s.name
	r.Symbol = symbol
	r.Timeframe = string(tf)
	return r, nil
}

func fixedBuy(strength, confidence float64) func(domrepo.Timeframe) (models.SignalResult, error) {
	return func(domrepo.Timeframe) (models.SignalResult, error) {
		return models.SignalResult{
			Direction:  models.DirectionBuy,
			Strength:   strength,
			Confidence: confidence,
			Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}, nil
	}
}

type fakeCandleSource struct {
	empty map[domrepo.Timeframe]bool
	err   error
}

func (s *fakeCandleSource) GetRecentCandles(_ context.Context, symbolID int64, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.empty[tf] {
		return nil, nil
	}
	return []models.Candle{{
		Bucket:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SymbolID:  symbolID,
		Timeframe: string(tf),
		Close:     100,
	}}, nil
}

func (s *fakeCandleSource) GetCandlesRange(context.Context, int64, domrepo.Timeframe, time.Time, time.Time) ([]models.Candle, error) {
	return nil, nil
}

type collectDeliverer struct {
	mu       sync.Mutex
	payloads map[string][]interface{}
	fail     map[string]error
}

func (d *collectDeliverer) Deliver(_ context.Context, channel string, payload interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail[channel]; err != nil {
		return err
	}
	if d.payloads == nil {
		d.payloads = map[string][]interface{}{}
	}
	d.payloads[channel] = append(d.payloads[channel], payload)
	return nil
}

func newTestExecutor(t *testing.T, reg *strategy.Registry, del *collectDeliverer) *Executor {
	t.Helper()
	engine, err := aggregation.NewEngine(aggregation.DefaultConfig())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return NewExecutor(reg, engine, aggregation.NewMultiTimeframe(nil, 0.3), &fakeCandleSource{}, del, nopMetrics{}, logger.Nop(), 4)
}

func registerStub(t *testing.T, reg *strategy.Registry, s *stubStrategy) {
	t.Helper()
	s.cfg.Name = s.name
	s.cfg.Enabled = true
	if s.cfg.Weight == 0 {
		s.cfg.Weight = 1.0
	}
	if err := reg.Register(s); err != nil {
		t.Fatalf("register %s: %v", s.name, err)
	}
}

func TestExecutePipeline(t *testing.T) {
	reg := strategy.NewRegistry()
	registerStub(t, reg, &stubStrategy{name: "sma", eval: fixedBuy(0.8, 0.9)})
	registerStub(t, reg, &stubStrategy{name: "rsi", eval: fixedBuy(0.6, 0.7)})
	del := &collectDeliverer{}
	ex := newTestExecutor(t, reg, del)

	g, err := LoadGraph(pipelineWorkflow(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := ex.Execute(context.Background(), g, ModeRealtime)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	agg := res.Nodes["agg"]
	if agg.Status != "success" || agg.Aggregated == nil {
		t.Fatalf("aggregation node: %+v", agg)
	}
	if agg.Aggregated.Direction != models.DirectionBuy {
		t.Fatalf("expected buy, got %s", agg.Aggregated.Direction)
	}
	out := res.Nodes["out"]
	if len(out.Delivered) != 1 || out.Delivered[0] != "log" {
		t.Fatalf("output node: %+v", out)
	}
	if len(del.payloads["log"]) != 1 {
		t.Fatalf("expected one delivered payload, got %v", del.payloads)
	}
}

func TestExecuteNodeIsolation(t *testing.T) {
	reg := strategy.NewRegistry()
	registerStub(t, reg, &stubStrategy{name: "sma", eval: fixedBuy(0.8, 0.9)})
	registerStub(t, reg, &stubStrategy{name: "rsi", eval: func(domrepo.Timeframe) (models.SignalResult, error) {
		return models.SignalResult{}, errors.New("indicator backend down")
	}})
	del := &collectDeliverer{}
	ex := newTestExecutor(t, reg, del)

	g, err := LoadGraph(pipelineWorkflow(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := ex.Execute(context.Background(), g, ModeRealtime)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	// the failing node is recorded but the run and sibling branches complete
	if !res.Success {
		t.Fatalf("one failing node must not fail the run: %+v", res)
	}
	if res.Nodes["rsi"].Status != "error" || res.Nodes["rsi"].Error == "" {
		t.Fatalf("rsi node: %+v", res.Nodes["rsi"])
	}
	if res.Nodes["sma"].Status != "success" {
		t.Fatalf("sma node: %+v", res.Nodes["sma"])
	}
	agg := res.Nodes["agg"]
	if agg.Status != "success" || agg.Aggregated == nil {
		t.Fatalf("aggregation node: %+v", agg)
	}
	// only one surviving strategy against min_strategies=2
	if agg.Aggregated.Direction != models.DirectionNeutral || agg.Aggregated.Reason() != models.ReasonInsufficientStrategies {
		t.Fatalf("expected insufficient_strategies, got %+v", agg.Aggregated)
	}
}

func TestExecuteSymbolNodeValidatesCandleData(t *testing.T) {
	reg := strategy.NewRegistry()
	registerStub(t, reg, &stubStrategy{name: "sma", eval: fixedBuy(0.8, 0.9)})
	registerStub(t, reg, &stubStrategy{name: "rsi", eval: fixedBuy(0.6, 0.7)})
	engine, err := aggregation.NewEngine(aggregation.DefaultConfig())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	src := &fakeCandleSource{empty: map[domrepo.Timeframe]bool{"4h": true}}
	ex := NewExecutor(reg, engine, aggregation.NewMultiTimeframe(nil, 0.3), src, &collectDeliverer{}, nopMetrics{}, logger.Nop(), 4)

	wf := rawWorkflow(t,
		[]Node{
			{ID: "sym", Kind: NodeSymbol},
			{ID: "sma", Kind: NodeSMA},
			{ID: "agg", Kind: NodeAggregation},
		},
		[]Edge{
			{From: "sym", To: "sma"},
			{From: "sma", To: "agg"},
		},
		map[string]interface{}{
			"sym": SymbolNodeConfig{SymbolID: 7, Ticker: "BTCUSDT", Exchange: "binance", Timeframes: []string{"1h", "4h"}},
		},
	)
	g, err := LoadGraph(wf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := ex.Execute(context.Background(), g, ModeRealtime)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	sym := res.Nodes["sym"]
	if sym.Status != "error" || sym.DataValidated {
		t.Fatalf("symbol node must fail on a timeframe without data: %+v", sym)
	}
	// node isolation still holds for a failing symbol node
	if !res.Success {
		t.Fatalf("run must complete: %+v", res)
	}

	// with data on every timeframe validation passes
	src.empty = nil
	res, err = ex.Execute(context.Background(), g, ModeRealtime)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	sym = res.Nodes["sym"]
	if sym.Status != "success" || !sym.DataValidated {
		t.Fatalf("symbol node: %+v", sym)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	reg := strategy.NewRegistry()
	registerStub(t, reg, &stubStrategy{name: "sma", eval: fixedBuy(0.8, 0.9)})
	ex := newTestExecutor(t, reg, &collectDeliverer{})

	g, err := LoadGraph(pipelineWorkflow(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ex.Execute(ctx, g, ModeRealtime)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Success {
		t.Fatalf("canceled run must not report success")
	}
}

func TestExecuteOutputChannelFailure(t *testing.T) {
	reg := strategy.NewRegistry()
	registerStub(t, reg, &stubStrategy{name: "sma", eval: fixedBuy(0.8, 0.9)})
	registerStub(t, reg, &stubStrategy{name: "rsi", eval: fixedBuy(0.6, 0.7)})
	del := &collectDeliverer{fail: map[string]error{"webhook": errors.New("endpoint 500")}}
	ex := newTestExecutor(t, reg, del)

	wf := rawWorkflow(t,
		[]Node{
			{ID: "sym", Kind: NodeSymbol},
			{ID: "sma", Kind: NodeSMA},
			{ID: "rsi", Kind: NodeRSI},
			{ID: "agg", Kind: NodeAggregation},
			{ID: "out", Kind: NodeOutput},
		},
		[]Edge{
			{From: "sym", To: "sma"},
			{From: "sym", To: "rsi"},
			{From: "sma", To: "agg"},
			{From: "rsi", To: "agg"},
			{From: "agg", To: "out"},
		},
		map[string]interface{}{
			"sym": SymbolNodeConfig{SymbolID: 7, Ticker: "BTCUSDT", Exchange: "binance", Timeframes: []string{"1h"}},
			"out": OutputNodeConfig{Channels: []string{"webhook", "log"}},
		},
	)
	g, err := LoadGraph(wf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := ex.Execute(context.Background(), g, ModeRealtime)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := res.Nodes["out"]
	if out.Status != "success" {
		t.Fatalf("partial delivery must keep the node successful: %+v", out)
	}
	if out.Failed["webhook"] == "" || len(out.Delivered) != 1 {
		t.Fatalf("expected webhook failure and log delivery: %+v", out)
	}
}

func TestExecuteMultiTimeframeAggregation(t *testing.T) {
	reg := strategy.NewRegistry()
	registerStub(t, reg, &stubStrategy{name: "sma", eval: fixedBuy(0.8, 0.9)})
	registerStub(t, reg, &stubStrategy{name: "rsi", eval: fixedBuy(0.6, 0.7)})
	del := &collectDeliverer{}
	ex := newTestExecutor(t, reg, del)

	wf := rawWorkflow(t,
		[]Node{
			{ID: "sym", Kind: NodeSymbol},
			{ID: "sma", Kind: NodeSMA},
			{ID: "rsi", Kind: NodeRSI},
			{ID: "agg", Kind: NodeAggregation},
		},
		[]Edge{
			{From: "sym", To: "sma"},
			{From: "sym", To: "rsi"},
			{From: "sma", To: "agg"},
			{From: "rsi", To: "agg"},
		},
		map[string]interface{}{
			"sym": SymbolNodeConfig{SymbolID: 7, Ticker: "BTCUSDT", Exchange: "binance", Timeframes: []string{"15m", "1h", "4h"}},
			"agg": AggregationNodeConfig{MultiTimeframe: true},
		},
	)
	g, err := LoadGraph(wf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := ex.Execute(context.Background(), g, ModeRealtime)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	agg := res.Nodes["agg"]
	if agg.MultiTF == nil {
		t.Fatalf("expected multi-timeframe roll-up: %+v", agg)
	}
	if agg.MultiTF.Direction != models.DirectionBuy {
		t.Fatalf("expected buy roll-up, got %s", agg.MultiTF.Direction)
	}
	if len(agg.MultiTF.PerTimeframe) != 3 {
		t.Fatalf("expected 3 per-timeframe verdicts, got %v", agg.MultiTF.PerTimeframe)
	}
}
