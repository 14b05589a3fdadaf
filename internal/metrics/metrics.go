// Package metrics provides Prometheus instrumentation for the console core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transportAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edugen_transport_attempts_total",
			Help: "Total webhook delivery attempts",
		},
		[]string{"outcome"}, // outcome: success, retryable, terminal
	)

	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edugen_pipeline_runs_total",
			Help: "Total generation runs by terminal status",
		},
		[]string{"status", "mode"}, // status: complete, error
	)

	pipelineRunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edugen_pipeline_run_duration_seconds",
			Help:    "Generation run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

// Transport attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeTerminal  = "terminal"
)

func RecordTransportAttempt(outcome string) {
	transportAttemptsTotal.WithLabelValues(outcome).Inc()
}

func RecordPipelineRun(status, mode string, seconds float64) {
	pipelineRunsTotal.WithLabelValues(status, mode).Inc()
	pipelineRunDurationSeconds.Observe(seconds)
}
