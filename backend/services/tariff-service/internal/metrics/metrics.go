// Package metrics exposes Prometheus instruments for the tariff service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the tariff service instruments. A nil *Metrics records nothing.
type Metrics struct {
	Resolutions    *prometheus.CounterVec
	Mutations      *prometheus.CounterVec
	MutationErrors *prometheus.CounterVec
	LockWait       prometheus.Histogram
}

// New registers the instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "careportal",
				Subsystem: "tariff",
				Name:      "resolutions_total",
				Help:      "Resolved customer rates by winning scope",
			},
			[]string{"source"},
		),
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "careportal",
				Subsystem: "tariff",
				Name:      "mutations_total",
				Help:      "Committed rate writes by scope and action",
			},
			[]string{"scope", "action"},
		),
		MutationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "careportal",
				Subsystem: "tariff",
				Name:      "mutation_errors_total",
				Help:      "Rejected or failed rate writes by scope and reason",
			},
			[]string{"scope", "reason"},
		),
		LockWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "careportal",
				Subsystem: "tariff",
				Name:      "lock_wait_seconds",
				Help:      "Time spent waiting for a scope key write lock",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		),
	}
}

// ObserveResolution counts one successful resolution.
func (m *Metrics) ObserveResolution(source string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(source).Inc()
}

// ObserveMutation counts one committed write.
func (m *Metrics) ObserveMutation(scope, action string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(scope, action).Inc()
}

// ObserveMutationError counts one rejected write.
func (m *Metrics) ObserveMutationError(scope, reason string) {
	if m == nil {
		return
	}
	m.MutationErrors.WithLabelValues(scope, reason).Inc()
}

// ObserveLockWait records how long a writer waited for its lock.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}
