package aggregation

import (
	"fmt"
	"sync/atomic"
)

// Method selects the aggregation algorithm.
type Method string

const (
	WeightedAverage    Method = "weighted_average"
	MajorityVote       Method = "majority_vote"
	Consensus          Method = "consensus"
	ConfidenceWeighted Method = "confidence_weighted"
)

// ParseMethod validates a raw method string.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case WeightedAverage, MajorityVote, Consensus, ConfidenceWeighted:
		return Method(s), nil
	default:
		return "", fmt.Errorf("unknown aggregation method: %q", s)
	}
}

// Config is the global aggregation configuration. Swapped wholesale via
// Engine.UpdateConfig; never mutated in place, so concurrent aggregations
// never see a half-updated config.
type Config struct {
	Method              Method             `json:"method"`
	MinStrategies       int                `json:"min_strategies"`       // quorum
	ConsensusThreshold  float64            `json:"consensus_threshold"`  // vote share the winner must reach
	ConfidenceThreshold float64            `json:"confidence_threshold"` // minimum blended confidence
	ConflictPenalty     float64            `json:"conflict_penalty"`     // haircut when buy and sell coexist
	CustomWeights       map[string]float64 `json:"custom_weights,omitempty"`
}

// DefaultConfig returns the startup aggregation configuration.
func DefaultConfig() *Config {
	return &Config{
		Method:              WeightedAverage,
		MinStrategies:       2,
		ConsensusThreshold:  0.66,
		ConfidenceThreshold: 0.5,
		ConflictPenalty:     0.3,
	}
}

// Validate rejects malformed configuration instead of defaulting it.
func (c *Config) Validate() error {
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if c.MinStrategies < 1 {
		return fmt.Errorf("min_strategies must be at least 1")
	}
	if c.ConsensusThreshold <= 0 || c.ConsensusThreshold > 1 {
		return fmt.Errorf("consensus_threshold must be in (0,1]")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1]")
	}
	if c.ConflictPenalty < 0 || c.ConflictPenalty >= 1 {
		return fmt.Errorf("conflict_penalty must be in [0,1)")
	}
	for name, w := range c.CustomWeights {
		if w <= 0 {
			return fmt.Errorf("custom weight for %s must be positive", name)
		}
	}
	return nil
}

func (c *Config) clone() *Config {
	cp := *c
	if c.CustomWeights != nil {
		cp.CustomWeights = make(map[string]float64, len(c.CustomWeights))
		for k, v := range c.CustomWeights {
			cp.CustomWeights[k] = v
		}
	}
	return &cp
}

// Engine combines candidate signal results into one consensus signal.
// Aggregate is pure aside from reading the active config once per call.
type Engine struct {
	cfg atomic.Pointer[Config]
}

func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{}
	e.cfg.Store(cfg.clone())
	return e, nil
}

// UpdateConfig swaps the active configuration atomically. Takes effect on
// the next Aggregate call; in-flight aggregations keep the config they
// loaded.
func (e *Engine) UpdateConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg.Store(cfg.clone())
	return nil
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return *e.cfg.Load().clone()
}
