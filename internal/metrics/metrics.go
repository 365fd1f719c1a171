// Package metrics holds the service's Prometheus collectors and HTTP
// instrumentation middleware.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sync engine metrics.
var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsync",
			Name:      "events_total",
			Help:      "Change events by kind and processing outcome",
		},
		[]string{"kind", "outcome"},
	)

	RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopsync",
			Name:      "retries_total",
			Help:      "Retried event-processing attempts",
		},
	)

	DeadLettersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopsync",
			Name:      "dead_letters_total",
			Help:      "Events abandoned to the dead-letter record",
		},
	)

	LanesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shopsync",
			Name:      "lanes_active",
			Help:      "Live per-item processing lanes",
		},
	)

	EventApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsync",
			Name:      "event_apply_duration_seconds",
			Help:      "Time from lane pickup to applied mutation",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)
)

// Event processing outcomes for EventsTotal.
const (
	OutcomeApplied      = "applied"
	OutcomeSkipped      = "skipped"
	OutcomeDuplicate    = "duplicate"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeRejected     = "rejected"
)

func init() {
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(RetriesTotal)
	prometheus.MustRegister(DeadLettersTotal)
	prometheus.MustRegister(LanesActive)
	prometheus.MustRegister(EventApplyDuration)
}
