package strategy

import (
	"errors"
	"sort"
	"sync"

	domrepo "SignalFlow/internal/domain/repository"
)

var (
	// ErrStrategyExists is returned by Register when the name is taken.
	// Replacing a strategy requires an explicit Unregister first.
	ErrStrategyExists = errors.New("strategy already registered")

	// ErrStrategyNotFound is returned by Unregister/Get on an unknown name.
	ErrStrategyNotFound = errors.New("strategy not registered")
)

// Registry is the process-wide strategy collection. Reads may run
// concurrently with administrative register/unregister calls; Snapshot gives
// an evaluation a stable view for its whole duration.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy under its unique name. An existing name is
// rejected, never overwritten.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.Name()]; exists {
		return ErrStrategyExists
	}
	r.strategies[s.Name()] = s
	return nil
}

// Unregister removes a strategy by name. A missing name is an error, not a
// silent no-op.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; !exists {
		return ErrStrategyNotFound
	}
	delete(r.strategies, name)
	return nil
}

// Get looks up a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// List returns all registered strategies sorted by name.
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.strategies)
}

// ListActive returns enabled strategies sorted by name.
func (r *Registry) ListActive() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make(map[string]Strategy, len(r.strategies))
	for name, s := range r.strategies {
		if s.Config().Enabled {
			active[name] = s
		}
	}
	return sortedValues(active)
}

// Snapshot returns a stable copy of the active strategy set for one
// evaluation. When names are given, only those strategies are returned;
// unknown names are skipped. Later registry mutations are not visible
// through the returned slice.
func (r *Registry) Snapshot(names ...string) []Strategy {
	if len(names) == 0 {
		return r.ListActive()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		if s, ok := r.strategies[name]; ok && s.Config().Enabled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Profiles returns the per-strategy aggregation inputs (weight and
// minimum-confidence floor) for every registered strategy.
func (r *Registry) Profiles() map[string]Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Profile, len(r.strategies))
	for name, s := range r.strategies {
		cfg := s.Config()
		out[name] = Profile{Weight: cfg.Weight, MinConfidence: cfg.MinConfidence}
	}
	return out
}

// Profile is the slice of a strategy config the aggregation engine needs.
type Profile struct {
	Weight        float64
	MinConfidence float64
}

func sortedValues(m map[string]Strategy) []Strategy {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		out = append(out, m[name])
	}
	return out
}

// Defaults builds the default strategy set registered at startup.
func Defaults(source domrepo.IndicatorSource) ([]Strategy, error) {
	specs := []struct {
		kind string
		cfg  Config
	}{
		{KindSMA, Config{Name: "sma", Description: "SMA fast/slow crossover", Version: "1.0", Enabled: true, Weight: 1.0, MinConfidence: 0.3}},
		{KindMACD, Config{Name: "macd", Description: "MACD histogram momentum", Version: "1.0", Enabled: true, Weight: 1.2, MinConfidence: 0.3}},
		{KindRSI, Config{Name: "rsi", Description: "RSI mean reversion", Version: "1.0", Enabled: true, Weight: 1.0, MinConfidence: 0.3}},
		{KindBollinger, Config{Name: "bollinger", Description: "Bollinger band reversion", Version: "1.0", Enabled: true, Weight: 0.8, MinConfidence: 0.3}},
	}

	out := make([]Strategy, 0, len(specs))
	for _, spec := range specs {
		s, err := FromConfig(spec.kind, spec.cfg, source)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
