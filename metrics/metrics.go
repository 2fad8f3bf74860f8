// Package metrics exposes Prometheus collectors for resolution, planning,
// apply and registry traffic.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution results.
const (
	ResultSuccess    = "success"
	ResultImpossible = "impossible"
	ResultBlocked    = "blocked"
	ResultError      = "error"
)

// Metrics holds the collectors of one engine.
type Metrics struct {
	resolutionTotal    *prometheus.CounterVec
	resolutionSteps    prometheus.Histogram
	resolutionDuration prometheus.Histogram
	backtrackTotal     prometheus.Counter

	planStepTotal *prometheus.CounterVec

	applyStepTotal *prometheus.CounterVec
	applyDuration  prometheus.Histogram
	rollbackTotal  *prometheus.CounterVec

	registryRequestTotal    *prometheus.CounterVec
	registryRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modman_resolution_total",
				Help: "Number of resolutions by result.",
			},
			[]string{"result"},
		),
		resolutionSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modman_resolution_steps",
				Help:    "Propagation rounds spent per resolution.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		resolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modman_resolution_duration_seconds",
				Help:    "Time taken to resolve a request.",
				Buckets: prometheus.DefBuckets,
			},
		),
		backtrackTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "modman_resolution_backtracks_total",
				Help: "Total number of candidates retried after a dead end.",
			},
		),
		planStepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modman_plan_steps_total",
				Help: "Number of planned transaction steps by kind.",
			},
			[]string{"kind"},
		),
		applyStepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modman_apply_steps_total",
				Help: "Number of applied transaction steps by kind and result.",
			},
			[]string{"kind", "result"},
		),
		applyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modman_apply_duration_seconds",
				Help:    "Time taken to apply a plan.",
				Buckets: prometheus.DefBuckets,
			},
		),
		rollbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modman_rollback_total",
				Help: "Number of rollbacks by outcome.",
			},
			[]string{"outcome"},
		),
		registryRequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modman_registry_requests_total",
				Help: "Number of registry requests by host and status.",
			},
			[]string{"host", "status"},
		),
		registryRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modman_registry_request_duration_seconds",
				Help:    "Registry request latency by host.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.resolutionTotal,
			m.resolutionSteps,
			m.resolutionDuration,
			m.backtrackTotal,
			m.planStepTotal,
			m.applyStepTotal,
			m.applyDuration,
			m.rollbackTotal,
			m.registryRequestTotal,
			m.registryRequestDuration,
		)
	}
	return m
}

// ObserveResolution records one finished resolution.
func (m *Metrics) ObserveResolution(result string, steps, backtracks int, d time.Duration) {
	if m == nil {
		return
	}
	m.resolutionTotal.WithLabelValues(result).Inc()
	m.resolutionSteps.Observe(float64(steps))
	m.resolutionDuration.Observe(d.Seconds())
	m.backtrackTotal.Add(float64(backtracks))
}

// ObservePlanStep records one planned step.
func (m *Metrics) ObservePlanStep(kind string) {
	if m == nil {
		return
	}
	m.planStepTotal.WithLabelValues(kind).Inc()
}

// ObserveApplyStep records one executed step.
func (m *Metrics) ObserveApplyStep(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.applyStepTotal.WithLabelValues(kind, result).Inc()
}

// ObserveApply records the duration of one apply.
func (m *Metrics) ObserveApply(d time.Duration) {
	if m == nil {
		return
	}
	m.applyDuration.Observe(d.Seconds())
}

// ObserveRollback records a rollback; clean is false when it left dirty
// state behind.
func (m *Metrics) ObserveRollback(clean bool) {
	if m == nil {
		return
	}
	outcome := "clean"
	if !clean {
		outcome = "dirty"
	}
	m.rollbackTotal.WithLabelValues(outcome).Inc()
}

// ObserveRegistryRequest records one registry round trip. status is the
// HTTP status code as text, or "error" for transport failures.
func (m *Metrics) ObserveRegistryRequest(host, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.registryRequestTotal.WithLabelValues(host, status).Inc()
	m.registryRequestDuration.WithLabelValues(host).Observe(d.Seconds())
}
