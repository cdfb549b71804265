package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"SignalFlow/internal/aggregation"
	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/strategy"
	"SignalFlow/pkg/logger"
)

// Mode selects the execution budget profile. Realtime keeps tight source
// timeouts for fresh data; backfill tolerates slower reads over a wider
// candle window.
type Mode string

const (
	ModeRealtime Mode = "realtime"
	ModeBackfill Mode = "backfill"
)

// ParseMode normalizes the requested mode, defaulting to realtime.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRealtime, "":
		return ModeRealtime, nil
	case ModeBackfill:
		return ModeBackfill, nil
	}
	return "", fmt.Errorf("unknown execution mode: %s", s)
}

// Budgets are the per-mode operational limits.
type Budgets struct {
	SourceTimeout   time.Duration
	DeliveryTimeout time.Duration
	CandleWindow    int
}

func (m Mode) Budgets() Budgets {
	if m == ModeBackfill {
		return Budgets{SourceTimeout: 30 * time.Second, DeliveryTimeout: 10 * time.Second, CandleWindow: 1000}
	}
	return Budgets{SourceTimeout: 5 * time.Second, DeliveryTimeout: 5 * time.Second, CandleWindow: 100}
}

// Executor walks a validated workflow graph in dependency order. Node
// failures are isolated: a failing node is recorded with status error and
// the walk continues, so one bad indicator read never aborts the run.
type Executor struct {
	registry  *strategy.Registry
	engine    *aggregation.Engine
	mtf       *aggregation.MultiTimeframe
	candles   domrepo.CandleSource
	deliverer domrepo.Deliverer
	metrics   domrepo.Metrics
	logger    *logger.Logger

	concurrency int
}

func NewExecutor(
	registry *strategy.Registry,
	engine *aggregation.Engine,
	mtf *aggregation.MultiTimeframe,
	candles domrepo.CandleSource,
	deliverer domrepo.Deliverer,
	metrics domrepo.Metrics,
	log *logger.Logger,
	concurrency int,
) *Executor {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Executor{
		registry:    registry,
		engine:      engine,
		mtf:         mtf,
		candles:     candles,
		deliverer:   deliverer,
		metrics:     metrics,
		logger:      log,
		concurrency: concurrency,
	}
}

// Execute runs every node of the graph. It returns an error only when the
// run as a whole could not proceed (context canceled); per-node failures
// land in the result instead.
func (e *Executor) Execute(ctx context.Context, g *Graph, mode Mode) (*models.WorkflowResult, error) {
	started := time.Now()
	budgets := mode.Budgets()

	result := &models.WorkflowResult{
		Success: true,
		Mode:    string(mode),
		Nodes:   make(map[string]models.NodeResult, len(g.Nodes)),
	}

	for _, id := range g.TopoOrder() {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.ExecutionTime = time.Since(started)
			return result, err
		}

		node := g.Nodes[id]
		nr := e.runNode(ctx, g, node, budgets, result)
		nr.Type = string(node.Kind)
		if nr.Status == "" {
			nr.Status = "success"
		}
		// a failing node is recorded but does not fail the run;
		// Success reflects whether the walk itself completed
		if nr.Status == "error" {
			e.metrics.RecordNodeError(string(node.Kind))
			e.logger.Warn("workflow node failed",
				logger.String("workflow_id", g.WorkflowID),
				logger.String("node_id", id),
				logger.String("node_type", string(node.Kind)),
				logger.String("error", nr.Error))
		}
		result.Nodes[id] = nr
	}

	result.ExecutionTime = time.Since(started)
	return result, nil
}

func (e *Executor) runNode(ctx context.Context, g *Graph, node Node, budgets Budgets, result *models.WorkflowResult) models.NodeResult {
	switch {
	case node.Kind == NodeSymbol:
		return e.runSymbolNode(ctx, g, node, budgets)
	case node.Kind.IsIndicator():
		return e.runIndicatorNode(ctx, g, node, budgets)
	case node.Kind == NodeAggregation:
		return e.runAggregationNode(g, node, result)
	case node.Kind == NodeOutput:
		return e.runOutputNode(ctx, g, node, budgets, result)
	}
	return models.NodeResult{Status: "error", Error: fmt.Sprintf("unhandled node type %s", node.Kind)}
}

// runSymbolNode validates the instrument selection and confirms the
// configured timeframes actually have candle data. It produces no signals
// itself; downstream nodes resolve the symbol through the graph.
func (e *Executor) runSymbolNode(ctx context.Context, g *Graph, node Node, budgets Budgets) models.NodeResult {
	var cfg SymbolNodeConfig
	if err := g.DecodeConfig(node.ID, &cfg); err != nil {
		return models.NodeResult{Status: "error", Error: err.Error()}
	}
	if cfg.SymbolID == 0 && cfg.Ticker == "" {
		return models.NodeResult{Status: "error", Error: "symbol node selects no instrument"}
	}
	for _, s := range cfg.Timeframes {
		if !domrepo.IsValidTimeframe(domrepo.Timeframe(s)) {
			return models.NodeResult{Status: "error", Error: fmt.Sprintf("unknown timeframe %q", s)}
		}
	}

	// ticker-only selections cannot be checked against the candle store;
	// indicator nodes still validate their own reads downstream
	if cfg.SymbolID == 0 || e.candles == nil {
		return models.NodeResult{Status: "success", DataValidated: false}
	}
	for _, s := range cfg.Timeframes {
		tf := domrepo.Timeframe(s)
		readCtx, cancel := context.WithTimeout(ctx, budgets.SourceTimeout)
		began := time.Now()
		rows, err := e.candles.GetRecentCandles(readCtx, cfg.SymbolID, tf, budgets.CandleWindow)
		cancel()
		e.metrics.RecordSourceLatency("candle_read", time.Since(began).Seconds())
		if err != nil {
			return models.NodeResult{Status: "error", Error: fmt.Sprintf("candle read for %s: %v", tf, err)}
		}
		if len(rows) == 0 {
			return models.NodeResult{Status: "error", Error: fmt.Sprintf("no candle data for symbol %d on %s", cfg.SymbolID, tf)}
		}
	}
	return models.NodeResult{Status: "success", DataValidated: true}
}

// runIndicatorNode evaluates one strategy over the node's timeframes. The
// evaluations of different timeframes run concurrently under a semaphore;
// an unavailable timeframe is recorded in Failed without failing the node
// as long as at least one timeframe produced a signal.
func (e *Executor) runIndicatorNode(ctx context.Context, g *Graph, node Node, budgets Budgets) models.NodeResult {
	var cfg IndicatorNodeConfig
	if err := g.DecodeConfig(node.ID, &cfg); err != nil {
		return models.NodeResult{Status: "error", Error: err.Error()}
	}
	symCfg, err := g.SymbolFor(node.ID)
	if err != nil {
		return models.NodeResult{Status: "error", Error: err.Error()}
	}
	tfs, err := g.Timeframes(node.ID, cfg, symCfg)
	if err != nil {
		return models.NodeResult{Status: "error", Error: err.Error()}
	}

	name := cfg.Strategy
	if name == "" {
		name = node.Kind.StrategyKind()
	}
	strat, ok := e.registry.Get(name)
	if !ok {
		return models.NodeResult{Status: "error", Error: fmt.Sprintf("strategy %q not registered", name)}
	}

	type tfOutcome struct {
		tf     domrepo.Timeframe
		signal models.SignalResult
		err    error
	}

	sem := make(chan struct{}, e.concurrency)
	results := make(chan tfOutcome, len(tfs))
	symbol := symCfg.Ref()

	for _, tf := range tfs {
		go func(tf domrepo.Timeframe) {
			sem <- struct{}{}
			defer func() { <-sem }()

			evalCtx, cancel := context.WithTimeout(ctx, budgets.SourceTimeout)
			defer cancel()

			began := time.Now()
			sig, err := strat.Evaluate(evalCtx, symbol, tf)
			e.metrics.RecordSourceLatency("strategy_evaluate", time.Since(began).Seconds())
			results <- tfOutcome{tf: tf, signal: sig, err: err}
		}(tf)
	}

	nr := models.NodeResult{Status: "success", DataValidated: true}
	for range tfs {
		oc := <-results
		if oc.err != nil {
			if nr.Failed == nil {
				nr.Failed = map[string]string{}
			}
			nr.Failed[string(oc.tf)] = oc.err.Error()
			e.metrics.RecordEvaluation(name, "error")
			continue
		}
		nr.Signals = append(nr.Signals, oc.signal)
		e.metrics.RecordEvaluation(name, "ok")
	}
	sort.Slice(nr.Signals, func(i, j int) bool { return nr.Signals[i].Timeframe < nr.Signals[j].Timeframe })

	if len(nr.Signals) == 0 {
		nr.Status = "error"
		nr.Error = fmt.Sprintf("strategy %s produced no signal on any timeframe", name)
	}
	return nr
}

// runAggregationNode collects the signals of every transitive upstream
// indicator node, groups them per timeframe, aggregates each group, and
// rolls the groups up when multi-timeframe mode is on.
func (e *Executor) runAggregationNode(g *Graph, node Node, result *models.WorkflowResult) models.NodeResult {
	var cfg AggregationNodeConfig
	if err := g.DecodeConfig(node.ID, &cfg); err != nil {
		return models.NodeResult{Status: "error", Error: err.Error()}
	}
	symCfg, err := g.SymbolFor(node.ID)
	if err != nil {
		return models.NodeResult{Status: "error", Error: err.Error()}
	}
	symbol := symCfg.Ref()

	byTimeframe := map[domrepo.Timeframe][]models.SignalResult{}
	for _, anc := range g.Upstream(node.ID) {
		if !g.Nodes[anc].Kind.IsIndicator() {
			continue
		}
		upstream, ok := result.Nodes[anc]
		if !ok || upstream.Status != "success" {
			continue
		}
		for _, sig := range upstream.Signals {
			tf := domrepo.Timeframe(sig.Timeframe)
			byTimeframe[tf] = append(byTimeframe[tf], sig)
		}
	}
	if len(byTimeframe) == 0 {
		return models.NodeResult{Status: "error", Error: "no upstream signals to aggregate"}
	}

	engine := e.engine
	if overridden, err := e.engineFor(cfg); err != nil {
		return models.NodeResult{Status: "error", Error: err.Error()}
	} else if overridden != nil {
		engine = overridden
	}

	profiles := e.registry.Profiles()
	outcomes := map[domrepo.Timeframe]aggregation.TimeframeOutcome{}
	order := make([]domrepo.Timeframe, 0, len(byTimeframe))
	for _, tf := range domrepo.OrderedTimeframes() {
		candidates, ok := byTimeframe[tf]
		if !ok {
			continue
		}
		order = append(order, tf)
		agg := engine.Aggregate(symbol, tf, candidates, profiles)
		outcomes[tf] = aggregation.TimeframeOutcome{Signal: agg}
		e.metrics.RecordAggregation(string(engine.Config().Method), string(agg.Direction), agg.Reason())
	}

	nr := models.NodeResult{Status: "success", DataValidated: true}
	if cfg.MultiTimeframe || len(order) > 1 {
		mtf := e.mtf.Rollup(symbol, order, outcomes)
		nr.MultiTF = &mtf
	}
	// the single-timeframe verdict rides along even in multi mode so the
	// output node always has a flat signal to deliver
	primary := outcomes[order[len(order)-1]].Signal
	nr.Aggregated = &primary
	return nr
}

// engineFor builds a one-off engine when the node overrides the global
// aggregation config. Nil means use the shared engine.
func (e *Executor) engineFor(cfg AggregationNodeConfig) (*aggregation.Engine, error) {
	if cfg.Method == "" && cfg.MinStrategies == 0 && cfg.ConsensusThreshold == 0 &&
		cfg.ConfidenceThreshold == 0 && cfg.ConflictPenalty == nil && len(cfg.CustomWeights) == 0 {
		return nil, nil
	}

	base := e.engine.Config()
	if cfg.Method != "" {
		m, err := aggregation.ParseMethod(cfg.Method)
		if err != nil {
			return nil, err
		}
		base.Method = m
	}
	if cfg.MinStrategies > 0 {
		base.MinStrategies = cfg.MinStrategies
	}
	if cfg.ConsensusThreshold > 0 {
		base.ConsensusThreshold = cfg.ConsensusThreshold
	}
	if cfg.ConfidenceThreshold > 0 {
		base.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	if cfg.ConflictPenalty != nil {
		base.ConflictPenalty = *cfg.ConflictPenalty
	}
	if len(cfg.CustomWeights) > 0 {
		base.CustomWeights = cfg.CustomWeights
	}
	return aggregation.NewEngine(&base)
}

// runOutputNode fans the nearest upstream aggregated signal out to the
// configured delivery channels. A channel failure is recorded per channel;
// the node fails only when every channel failed.
func (e *Executor) runOutputNode(ctx context.Context, g *Graph, node Node, budgets Budgets, result *models.WorkflowResult) models.NodeResult {
	var cfg OutputNodeConfig
	if err := g.DecodeConfig(node.ID, &cfg); err != nil {
		return models.NodeResult{Status: "error", Error: err.Error()}
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{"log"}
	}

	var payload interface{}
	for _, anc := range g.Upstream(node.ID) {
		if g.Nodes[anc].Kind != NodeAggregation {
			continue
		}
		upstream, ok := result.Nodes[anc]
		if !ok || upstream.Status != "success" {
			continue
		}
		if upstream.MultiTF != nil {
			payload = upstream.MultiTF
		} else {
			payload = upstream.Aggregated
		}
	}
	if payload == nil {
		return models.NodeResult{Status: "error", Error: "no aggregated signal to deliver"}
	}

	nr := models.NodeResult{Status: "success", DataValidated: true}
	for _, channel := range cfg.Channels {
		deliverCtx, cancel := context.WithTimeout(ctx, budgets.DeliveryTimeout)
		err := e.deliverer.Deliver(deliverCtx, channel, payload)
		cancel()
		if err != nil {
			if nr.Failed == nil {
				nr.Failed = map[string]string{}
			}
			nr.Failed[channel] = err.Error()
			e.metrics.RecordDelivery(channel, "error")
			continue
		}
		nr.Delivered = append(nr.Delivered, channel)
		e.metrics.RecordDelivery(channel, "ok")
	}
	if len(nr.Delivered) == 0 {
		nr.Status = "error"
		nr.Error = "all delivery channels failed"
	}
	return nr
}
