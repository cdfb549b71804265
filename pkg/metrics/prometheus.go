package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	evaluations   *prometheus.CounterVec
	aggregations  *prometheus.CounterVec
	runs          *prometheus.HistogramVec
	nodeErrors    *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	sourceLatency *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_strategy_evaluations_total",
				Help: "Total number of strategy evaluations",
			},
			[]string{"strategy", "outcome"},
		),
		aggregations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_aggregations_total",
				Help: "Total number of signal aggregations",
			},
			[]string{"method", "direction", "reason"},
		),
		runs: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalflow_workflow_run_duration_seconds",
				Help:    "Duration of workflow runs in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		nodeErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_node_errors_total",
				Help: "Total number of workflow node errors",
			},
			[]string{"kind"},
		),
		deliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_deliveries_total",
				Help: "Total number of signal deliveries",
			},
			[]string{"channel", "result"},
		),
		sourceLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalflow_source_latency_seconds",
				Help:    "Duration of indicator source reads in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvaluation records a strategy evaluation outcome.
func (r *Recorder) RecordEvaluation(strategy, outcome string) {
	r.evaluations.WithLabelValues(strategy, outcome).Inc()
}

// RecordAggregation records an aggregation result.
func (r *Recorder) RecordAggregation(method, direction, reason string) {
	r.aggregations.WithLabelValues(method, direction, reason).Inc()
}

// RecordRun records a finished workflow run.
func (r *Recorder) RecordRun(status string, seconds float64) {
	r.runs.WithLabelValues(status).Observe(seconds)
}

// RecordNodeError records a workflow node failure.
func (r *Recorder) RecordNodeError(kind string) {
	r.nodeErrors.WithLabelValues(kind).Inc()
}

// RecordDelivery records a delivery attempt per channel.
func (r *Recorder) RecordDelivery(channel, result string) {
	r.deliveries.WithLabelValues(channel, result).Inc()
}

// RecordSourceLatency records indicator source read latency in seconds.
func (r *Recorder) RecordSourceLatency(op string, seconds float64) {
	r.sourceLatency.WithLabelValues(op).Observe(seconds)
}
