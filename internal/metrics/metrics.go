// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "editwarning"

var (
	// DecisionsTotal counts edit attempts by decision kind.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of evaluated edit attempts.",
		},
		[]string{"kind"},
	)

	// StoreErrorsTotal counts failed lock store operations.
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of lock store failures.",
		},
		[]string{"operation"},
	)

	// ExpiredLocksRemovedTotal counts locks dropped for being older than the lock timeout.
	ExpiredLocksRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_locks_removed_total",
			Help:      "Total number of expired locks removed.",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by route pattern, method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of http requests handled by the service.",
		},
		[]string{"route", "method", "code"},
	)

	// SweepsTotal counts sweeper runs by status (success/failed).
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Total number of expired-lock sweeps.",
		},
		[]string{"status"},
	)
)

// Recorder feeds coordinator events into the Prometheus counters.
type Recorder struct{}

func (Recorder) RecordDecision(kind string) {
	DecisionsTotal.WithLabelValues(kind).Inc()
}

func (Recorder) RecordStoreError(operation string) {
	StoreErrorsTotal.WithLabelValues(operation).Inc()
}

func (Recorder) RecordExpired(count int) {
	if count > 0 {
		ExpiredLocksRemovedTotal.Add(float64(count))
	}
}
