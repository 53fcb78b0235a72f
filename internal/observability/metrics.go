// Package observability bundles metrics, tracing, and logger construction
// for the orchestrator and its collaborators.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects orchestration metrics on an injected registerer, so
// tests get isolated registries instead of cross-test leakage through the
// default one.
type Metrics struct {
	// ToolDispatchCounter counts tool invocations.
	// Labels: tool, status (ok|error|pending_confirmation)
	ToolDispatchCounter *prometheus.CounterVec

	// ToolDispatchDuration measures executor latency in seconds.
	// Labels: tool
	ToolDispatchDuration *prometheus.HistogramVec

	// ProposalCounter counts proposal lifecycle transitions.
	// Labels: status (pending|confirmed|executed|discarded)
	ProposalCounter *prometheus.CounterVec

	// SpecialistCallDuration measures specialist call latency in seconds.
	// Labels: target, status (ok|timeout|remote_error)
	SpecialistCallDuration *prometheus.HistogramVec

	// ActiveSessions gauges live sessions.
	ActiveSessions prometheus.Gauge
}

// NewMetrics registers all metrics on the given registerer. A nil registerer
// falls back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ToolDispatchCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagecraft_tool_dispatch_total",
				Help: "Tool invocations by tool name and outcome status.",
			},
			[]string{"tool", "status"},
		),
		ToolDispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagecraft_tool_dispatch_duration_seconds",
				Help:    "Executor latency by tool name.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool"},
		),
		ProposalCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagecraft_proposals_total",
				Help: "Proposal lifecycle transitions by resulting status.",
			},
			[]string{"status"},
		),
		SpecialistCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagecraft_specialist_call_duration_seconds",
				Help:    "Specialist (A2A) call latency by target and outcome.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"target", "status"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stagecraft_active_sessions",
				Help: "Currently live sessions.",
			},
		),
	}
}
