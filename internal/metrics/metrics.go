package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	syncAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Name:      "sync_attempts_total",
			Help:      "Task sync attempts by trigger and outcome.",
		},
		[]string{"trigger", "outcome"},
	)

	providerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Name:      "provider_requests_total",
			Help:      "Calendar provider requests by operation and status class.",
		},
		[]string{"operation", "status"},
	)

	eventsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Name:      "events_written_total",
			Help:      "Calendar events created or updated.",
		},
		[]string{"op"},
	)

	orphansRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Name:      "orphans_removed_total",
			Help:      "Orphaned calendar events deleted during reconciliation.",
		},
	)

	unmappableTasks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Name:      "unmappable_tasks_total",
			Help:      "Tasks skipped because no event payload could be built.",
		},
	)

	bulkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "plansync",
			Name:      "bulk_sync_duration_seconds",
			Help:      "Wall time of full bulk synchronizations.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			syncAttempts,
			providerRequests,
			eventsWritten,
			orphansRemoved,
			unmappableTasks,
			bulkDuration,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSyncAttempt records one sync attempt.
// trigger is "task" or "bulk"; outcome is "ok", "skipped" or "error".
func IncSyncAttempt(trigger, outcome string) {
	syncAttempts.WithLabelValues(trigger, outcome).Inc()
}

// IncProviderRequest records one outbound provider call.
func IncProviderRequest(operation, status string) {
	providerRequests.WithLabelValues(operation, status).Inc()
}

// IncEventWritten records a created or updated calendar event.
func IncEventWritten(op string) {
	eventsWritten.WithLabelValues(op).Inc()
}

// IncOrphanRemoved records one deleted orphan event.
func IncOrphanRemoved() {
	orphansRemoved.Inc()
}

// IncUnmappableTask records a task that produced no payload.
func IncUnmappableTask() {
	unmappableTasks.Inc()
}

// ObserveBulkDuration records how long a bulk sync took.
func ObserveBulkDuration(d time.Duration) {
	bulkDuration.Observe(d.Seconds())
}
