package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector exported by the service.
type Metrics struct {
	Transitions          *prometheus.CounterVec
	CollaboratorFailures *prometheus.CounterVec
	SessionsClosed       *prometheus.CounterVec
	StoreDuration        *prometheus.HistogramVec
	StoreErrors          *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"from", "to"},
		),
		CollaboratorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_collaborator_failures_total",
				Help: "Failed calls to the transcriber, formatter or renderer",
			},
			[]string{"collaborator"},
		),
		SessionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_sessions_closed_total",
				Help: "Sessions removed, by outcome",
			},
			[]string{"outcome"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "minutes_store_operation_duration_seconds",
				Help:    "Duration of session store operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"operation"},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_store_errors_total",
				Help: "Session store operations that returned an error",
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.CollaboratorFailures, m.SessionsClosed, m.StoreDuration, m.StoreErrors)
	}
	return m
}

// ObserveStore records one store operation.
func (m *Metrics) ObserveStore(op string, started time.Time, err error) {
	m.StoreDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil {
		m.StoreErrors.WithLabelValues(op).Inc()
	}
}
