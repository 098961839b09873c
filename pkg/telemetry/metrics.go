package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the assistant core. A disabled
// instance is a safe no-op so library code never has to nil-check.
type Metrics struct {
	config MetricsConfig

	// Proposal lifecycle
	proposalsCreated  *prometheus.CounterVec
	proposalsConsumed *prometheus.CounterVec
	proposalsRejected *prometheus.CounterVec
	proposalsExpired  prometheus.Counter
	proposalsPending  prometheus.Gauge

	// Workflow phases
	workflowInvocations *prometheus.CounterVec
	changesApplied      *prometheus.CounterVec

	// Resilience
	serviceCalls *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	queueEvicted prometheus.Counter
	replays      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		proposalsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proposals_created_total",
				Help:      "Total number of proposals created",
			},
			[]string{"workflow"},
		),
		proposalsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proposals_consumed_total",
				Help:      "Total number of proposals consumed for execution",
			},
			[]string{"workflow"},
		),
		proposalsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proposals_rejected_total",
				Help:      "Total number of proposals rejected by the user",
			},
			[]string{"workflow"},
		),
		proposalsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proposals_expired_total",
				Help:      "Total number of proposals garbage-collected after TTL",
			},
		),
		proposalsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "proposals_pending",
				Help:      "Current number of pending proposals",
			},
		),

		workflowInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_invocations_total",
				Help:      "Total number of workflow invocations",
			},
			[]string{"workflow", "phase", "outcome"},
		),
		changesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_applied_total",
				Help:      "Total number of change descriptors applied in phase 2",
			},
			[]string{"workflow", "outcome"},
		),

		serviceCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_calls_total",
				Help:      "Total number of proxied collaborator calls",
			},
			[]string{"service", "method", "outcome"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "offline_queue_depth",
				Help:      "Current number of queued operations",
			},
		),
		queueEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "offline_queue_evicted_total",
				Help:      "Total number of queued operations evicted at capacity",
			},
		),
		replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "offline_queue_replays_total",
				Help:      "Total number of replay outcomes",
			},
			[]string{"service", "method", "outcome"},
		),
	}

	registry.MustRegister(
		m.proposalsCreated,
		m.proposalsConsumed,
		m.proposalsRejected,
		m.proposalsExpired,
		m.proposalsPending,
		m.workflowInvocations,
		m.changesApplied,
		m.serviceCalls,
		m.queueDepth,
		m.queueEvicted,
		m.replays,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProposalCreated records a phase-1 proposal creation.
func (m *Metrics) ObserveProposalCreated(workflow string) {
	if m.registry == nil {
		return
	}
	m.proposalsCreated.WithLabelValues(workflow).Inc()
}

// ObserveProposalConsumed records a phase-2 consume.
func (m *Metrics) ObserveProposalConsumed(workflow string) {
	if m.registry == nil {
		return
	}
	m.proposalsConsumed.WithLabelValues(workflow).Inc()
}

// ObserveProposalRejected records a user rejection.
func (m *Metrics) ObserveProposalRejected(workflow string) {
	if m.registry == nil {
		return
	}
	m.proposalsRejected.WithLabelValues(workflow).Inc()
}

// ObserveProposalsExpired records n proposals garbage-collected after TTL.
func (m *Metrics) ObserveProposalsExpired(n int) {
	if m.registry == nil {
		return
	}
	m.proposalsExpired.Add(float64(n))
}

// SetProposalsPending sets the pending-proposal gauge.
func (m *Metrics) SetProposalsPending(n int) {
	if m.registry == nil {
		return
	}
	m.proposalsPending.Set(float64(n))
}

// ObserveWorkflow records a workflow invocation outcome.
func (m *Metrics) ObserveWorkflow(workflow, phase, outcome string) {
	if m.registry == nil {
		return
	}
	m.workflowInvocations.WithLabelValues(workflow, phase, outcome).Inc()
}

// ObserveChangeApplied records a per-item phase-2 outcome.
func (m *Metrics) ObserveChangeApplied(workflow, outcome string) {
	if m.registry == nil {
		return
	}
	m.changesApplied.WithLabelValues(workflow, outcome).Inc()
}

// ObserveServiceCall records a proxied collaborator call outcome.
// Satisfies the resilience proxy observer.
func (m *Metrics) ObserveServiceCall(service, method, outcome string) {
	if m.registry == nil {
		return
	}
	m.serviceCalls.WithLabelValues(service, method, outcome).Inc()
}

// SetQueueDepth sets the offline queue depth gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m.registry == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObserveQueueEviction records a capacity eviction.
func (m *Metrics) ObserveQueueEviction() {
	if m.registry == nil {
		return
	}
	m.queueEvicted.Inc()
}

// ObserveReplay records a replay pass outcome for one queued operation.
// Satisfies the resilience replay observer.
func (m *Metrics) ObserveReplay(service, method, outcome string) {
	if m.registry == nil {
		return
	}
	m.replays.WithLabelValues(service, method, outcome).Inc()
}
