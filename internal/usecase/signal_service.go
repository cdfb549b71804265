package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalFlow/internal/aggregation"
	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/strategy"
	"SignalFlow/pkg/logger"
)

// SignalService evaluates the registered strategies for a symbol and folds
// their verdicts into one aggregated signal.
type SignalService struct {
	registry *strategy.Registry
	engine   *aggregation.Engine
	mtf      *aggregation.MultiTimeframe
	source   domrepo.IndicatorSource
	metrics  domrepo.Metrics
	logger   *logger.Logger

	evalTimeout time.Duration
	concurrency int
}

func NewSignalService(
	registry *strategy.Registry,
	engine *aggregation.Engine,
	mtf *aggregation.MultiTimeframe,
	source domrepo.IndicatorSource,
	metrics domrepo.Metrics,
	log *logger.Logger,
	evalTimeout time.Duration,
	concurrency int,
) *SignalService {
	if evalTimeout <= 0 {
		evalTimeout = 5 * time.Second
	}
	if concurrency < 1 {
		concurrency = 4
	}
	return &SignalService{
		registry:    registry,
		engine:      engine,
		mtf:         mtf,
		source:      source,
		metrics:     metrics,
		logger:      log,
		evalTimeout: evalTimeout,
		concurrency: concurrency,
	}
}

// EvaluateSignal runs the selected strategies concurrently and aggregates
// their results. A strategy that errors or times out drops out of the
// candidate set; the remaining strategies still produce a verdict.
func (s *SignalService) EvaluateSignal(ctx context.Context, symbol models.SymbolRef, tf domrepo.Timeframe, names ...string) (models.AggregatedSignal, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return models.AggregatedSignal{}, fmt.Errorf("unknown timeframe %q", tf)
	}

	strategies := s.registry.Snapshot(names...)
	candidates := s.collect(ctx, strategies, symbol, tf)
	return s.engine.Aggregate(symbol, tf, candidates, s.registry.Profiles()), nil
}

// EvaluateMultiTimeframe evaluates every requested timeframe and rolls the
// per-timeframe verdicts up into one symbol-level signal. A timeframe where
// no strategy produced a candidate is recorded as errored and excluded from
// the roll-up weights.
func (s *SignalService) EvaluateMultiTimeframe(ctx context.Context, symbol models.SymbolRef, tfs []domrepo.Timeframe, names ...string) (models.MultiTimeframeSignal, error) {
	if len(tfs) == 0 {
		tfs = domrepo.OrderedTimeframes()
	}
	for _, tf := range tfs {
		if !domrepo.IsValidTimeframe(tf) {
			return models.MultiTimeframeSignal{}, fmt.Errorf("unknown timeframe %q", tf)
		}
	}

	strategies := s.registry.Snapshot(names...)
	profiles := s.registry.Profiles()

	type tfResult struct {
		tf     domrepo.Timeframe
		signal models.AggregatedSignal
		err    error
	}

	sem := make(chan struct{}, s.concurrency)
	results := make(chan tfResult, len(tfs))
	for _, tf := range tfs {
		go func(tf domrepo.Timeframe) {
			sem <- struct{}{}
			defer func() { <-sem }()

			candidates := s.collect(ctx, strategies, symbol, tf)
			if len(candidates) == 0 {
				results <- tfResult{tf: tf, err: fmt.Errorf("no strategy produced a signal: %w", domrepo.ErrDataUnavailable)}
				return
			}
			results <- tfResult{tf: tf, signal: s.engine.Aggregate(symbol, tf, candidates, profiles)}
		}(tf)
	}

	outcomes := make(map[domrepo.Timeframe]aggregation.TimeframeOutcome, len(tfs))
	for range tfs {
		r := <-results
		if r.err != nil {
			outcomes[r.tf] = aggregation.TimeframeOutcome{Err: r.err}
			continue
		}
		outcomes[r.tf] = aggregation.TimeframeOutcome{Signal: r.signal}
	}

	return s.mtf.Rollup(symbol, tfs, outcomes), nil
}

// collect fans the strategy evaluations out under the per-call timeout and
// returns the successful candidates.
func (s *SignalService) collect(ctx context.Context, strategies []strategy.Strategy, symbol models.SymbolRef, tf domrepo.Timeframe) []models.SignalResult {
	type outcome struct {
		name   string
		signal models.SignalResult
		err    error
	}

	sem := make(chan struct{}, s.concurrency)
	results := make(chan outcome, len(strategies))
	for _, strat := range strategies {
		go func(strat strategy.Strategy) {
			sem <- struct{}{}
			defer func() { <-sem }()

			evalCtx, cancel := context.WithTimeout(ctx, s.evalTimeout)
			defer cancel()

			began := time.Now()
			sig, err := strat.Evaluate(evalCtx, symbol, tf)
			s.metrics.RecordSourceLatency("strategy_evaluate", time.Since(began).Seconds())
			results <- outcome{name: strat.Name(), signal: sig, err: err}
		}(strat)
	}

	candidates := make([]models.SignalResult, 0, len(strategies))
	for range strategies {
		oc := <-results
		if oc.err != nil {
			s.metrics.RecordEvaluation(oc.name, "error")
			switch {
			case errors.Is(oc.err, context.DeadlineExceeded):
				s.logger.Warn("strategy evaluation timed out",
					logger.String("strategy", oc.name),
					logger.String("ticker", symbol.Ticker),
					logger.String("tf", string(tf)))
			case errors.Is(oc.err, domrepo.ErrDataUnavailable):
				s.logger.Debug("strategy data unavailable",
					logger.String("strategy", oc.name),
					logger.String("ticker", symbol.Ticker),
					logger.String("tf", string(tf)))
			default:
				s.logger.Warn("strategy evaluation failed",
					logger.String("strategy", oc.name),
					logger.String("ticker", symbol.Ticker),
					logger.String("tf", string(tf)),
					logger.Error(oc.err))
			}
			continue
		}
		s.metrics.RecordEvaluation(oc.name, "ok")
		candidates = append(candidates, oc.signal)
	}
	return candidates
}

// RegisterStrategy builds a strategy from the request and adds it to the
// registry under its unique name.
func (s *SignalService) RegisterStrategy(req *models.RegisterStrategyRequest) (strategy.Config, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	cfg := strategy.Config{
		Name:          req.Name,
		Description:   req.Description,
		Version:       req.Version,
		Enabled:       enabled,
		Weight:        req.Weight,
		MinConfidence: req.MinConfidence,
		Params:        req.Params,
	}
	strat, err := strategy.FromConfig(req.Kind, cfg, s.source)
	if err != nil {
		return strategy.Config{}, err
	}
	if err := s.registry.Register(strat); err != nil {
		return strategy.Config{}, err
	}
	s.logger.Info("strategy registered",
		logger.String("name", req.Name),
		logger.String("kind", req.Kind))
	return strat.Config(), nil
}

// UnregisterStrategy removes a strategy from the registry.
func (s *SignalService) UnregisterStrategy(name string) error {
	if err := s.registry.Unregister(name); err != nil {
		return err
	}
	s.logger.Info("strategy unregistered", logger.String("name", name))
	return nil
}

// ListStrategies returns the configs of all registered strategies.
func (s *SignalService) ListStrategies() []strategy.Config {
	all := s.registry.List()
	out := make([]strategy.Config, 0, len(all))
	for _, strat := range all {
		out = append(out, strat.Config())
	}
	return out
}

// UpdateAggregationConfig validates and atomically swaps the engine config.
func (s *SignalService) UpdateAggregationConfig(req *models.UpdateAggregationRequest) (aggregation.Config, error) {
	method, err := aggregation.ParseMethod(req.Method)
	if err != nil {
		return aggregation.Config{}, err
	}
	cfg := &aggregation.Config{
		Method:              method,
		MinStrategies:       req.MinStrategies,
		ConsensusThreshold:  req.ConsensusThreshold,
		ConfidenceThreshold: req.ConfidenceThreshold,
		ConflictPenalty:     req.ConflictPenalty,
		CustomWeights:       req.CustomWeights,
	}
	if err := s.engine.UpdateConfig(cfg); err != nil {
		return aggregation.Config{}, err
	}
	s.logger.Info("aggregation config updated", logger.String("method", req.Method))
	return s.engine.Config(), nil
}

// GetAggregationInfo returns the active engine config.
func (s *SignalService) GetAggregationInfo() aggregation.Config {
	return s.engine.Config()
}
