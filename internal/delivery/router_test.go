package delivery

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"SignalFlow/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordEvaluation(string, string)     {}
func (nopMetrics) RecordAggregation(_, _, _ string)    {}
func (nopMetrics) RecordRun(string, float64)           {}
func (nopMetrics) RecordNodeError(string)              {}
func (nopMetrics) RecordDelivery(string, string)       {}
func (nopMetrics) RecordSourceLatency(string, float64) {}

type fakeSink struct {
	name string
	err  error
	sent []interface{}
}

func (s *fakeSink) Name() string { return s.name }
func (s *fakeSink) Send(_ context.Context, payload interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, payload)
	return nil
}

func TestRouterDispatch(t *testing.T) {
	good := &fakeSink{name: "log"}
	bad := &fakeSink{name: "webhook", err: errors.New("endpoint 500")}
	r := NewRouter(nopMetrics{}, logger.Nop(), good, bad)

	if err := r.Deliver(context.Background(), "log", "payload"); err != nil {
		t.Fatalf("deliver log: %v", err)
	}
	if len(good.sent) != 1 {
		t.Fatalf("expected payload at log sink, got %v", good.sent)
	}

	err := r.Deliver(context.Background(), "webhook", "payload")
	if err == nil || !strings.Contains(err.Error(), "webhook") {
		t.Fatalf("expected wrapped webhook error, got %v", err)
	}

	if err := r.Deliver(context.Background(), "carrier-pigeon", "payload"); err == nil {
		t.Fatalf("expected unknown channel error")
	}

	if got := r.Channels(); !reflect.DeepEqual(got, []string{"log", "webhook"}) {
		t.Fatalf("channels: %v", got)
	}
}
