// Package metrics exposes Prometheus instrumentation for the monitoring
// engine: ping ingestion, sweep activity, status transitions, and webhook
// delivery outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PingsTotal counts ingested pings by result:
	// accepted, fail_signal, stale, not_found.
	PingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Name:      "pings_total",
		Help:      "Liveness pings ingested, by result.",
	}, []string{"result"})

	// TransitionsTotal counts committed status transitions by target state.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Name:      "status_transitions_total",
		Help:      "Committed job status transitions, by target state.",
	}, []string{"to"})

	// SweepTicksTotal counts completed sweep ticks.
	SweepTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vigil",
		Name:      "sweep_ticks_total",
		Help:      "Completed liveness sweep ticks.",
	})

	// SweepDuration observes how long one sweep tick takes.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vigil",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one liveness sweep tick.",
		Buckets:   prometheus.DefBuckets,
	})

	// SweepDueJobs observes how many candidates a tick evaluated.
	SweepDueJobs = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vigil",
		Name:      "sweep_due_jobs",
		Help:      "Number of overdue candidates evaluated per sweep tick.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	// NotificationsTotal counts webhook delivery outcomes.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Name:      "notifications_total",
		Help:      "Webhook alert deliveries, by final status.",
	}, []string{"status"})
)

// RegisterNotifyQueueDepth exposes the notification queue backlog as a
// gauge, sampled at scrape time. A sustained non-zero depth means webhook
// delivery is falling behind the event rate.
func RegisterNotifyQueueDepth(depth func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vigil",
		Name:      "notify_queue_depth",
		Help:      "Notification tasks waiting for a delivery worker.",
	}, func() float64 {
		return float64(depth())
	})
}
