package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the runtime
type Metrics struct {
	registry *prometheus.Registry

	// Policy metrics
	PolicyDecisionsTotal *prometheus.CounterVec

	// Confirmation metrics
	ConfirmationsTotal   *prometheus.CounterVec
	ConfirmationsPending prometheus.Gauge

	// Scheduler metrics
	CallsTotal         *prometheus.CounterVec
	CallsExecuting     prometheus.Gauge
	CallDuration       *prometheus.HistogramVec
	ForcedTerminations *prometheus.CounterVec

	// Checkpoint metrics
	CheckpointsTotal prometheus.Counter
	RestoresTotal    prometheus.Counter
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Policy metrics
		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policy_decisions_total",
				Help: "Total number of policy decisions by verdict",
			},
			[]string{"tool", "verdict"},
		),

		// Confirmation metrics
		ConfirmationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirmations_total",
				Help: "Total number of confirmation outcomes",
			},
			[]string{"outcome"},
		),
		ConfirmationsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "confirmations_pending",
				Help: "Number of questions awaiting an answer",
			},
		),

		// Scheduler metrics
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool calls by terminal state",
			},
			[]string{"tool", "state"},
		),
		CallsExecuting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tool_calls_executing",
				Help: "Number of tool calls currently executing",
			},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool call execution in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		ForcedTerminations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_forced_terminations_total",
				Help: "Tool calls force-terminated after the cancellation grace period",
			},
			[]string{"tool"},
		),

		// Checkpoint metrics
		CheckpointsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "checkpoints_created_total",
				Help: "Total number of checkpoints created",
			},
		),
		RestoresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "checkpoint_restores_total",
				Help: "Total number of checkpoint restores applied",
			},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.PolicyDecisionsTotal)
	m.registry.MustRegister(m.ConfirmationsTotal)
	m.registry.MustRegister(m.ConfirmationsPending)
	m.registry.MustRegister(m.CallsTotal)
	m.registry.MustRegister(m.CallsExecuting)
	m.registry.MustRegister(m.CallDuration)
	m.registry.MustRegister(m.ForcedTerminations)
	m.registry.MustRegister(m.CheckpointsTotal)
	m.registry.MustRegister(m.RestoresTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
