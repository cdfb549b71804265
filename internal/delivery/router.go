// Package delivery fans final signals out to the configured channels:
// Kafka, WebSocket subscribers, webhooks and the structured log.
package delivery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domrepo "SignalFlow/internal/domain/repository"
	applogger "SignalFlow/pkg/logger"
)

// Sink is one delivery channel implementation.
type Sink interface {
	Name() string
	Send(ctx context.Context, payload interface{}) error
}

// Router dispatches payloads to sinks by channel name. Unknown channels are
// an error; a sink's own failure is wrapped with the channel name so the
// caller can record it per channel.
type Router struct {
	mu      sync.RWMutex
	sinks   map[string]Sink
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewRouter(metrics domrepo.Metrics, log *applogger.Logger, sinks ...Sink) *Router {
	r := &Router{
		sinks:   make(map[string]Sink, len(sinks)),
		metrics: metrics,
		logger:  log,
	}
	for _, s := range sinks {
		r.sinks[s.Name()] = s
	}
	return r
}

// AddSink registers an additional channel, replacing any previous sink of
// the same name.
func (r *Router) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[s.Name()] = s
}

// Channels returns the registered channel names, sorted.
func (r *Router) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Deliver implements repository.Deliverer.
func (r *Router) Deliver(ctx context.Context, channel string, payload interface{}) error {
	r.mu.RLock()
	sink, ok := r.sinks[channel]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown delivery channel %q", channel)
	}

	if err := sink.Send(ctx, payload); err != nil {
		r.logger.Warn("delivery failed",
			applogger.String("channel", channel),
			applogger.Error(err))
		return fmt.Errorf("deliver to %s: %w", channel, err)
	}
	return nil
}
