package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request latency (seconds).
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Database query latency (seconds).
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	// Stage transition outcomes.
	StageTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_transition_count",
			Help: "Total number of stage transition attempts",
		},
		[]string{"direction", "result"}, // direction: forward, backward, noop; result: ok, forbidden, conflict, not_found
	)

	// Outbox/MQ publish outcomes.
	EventPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_count",
			Help: "Total number of events published to the broker",
		},
		[]string{"routing_key", "status"}, // status: success, failed
	)

	// Stage cache hits and misses.
	StageCacheCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_cache_count",
			Help: "Stage registry snapshot cache lookups",
		},
		[]string{"outcome"}, // outcome: hit, miss, error
	)
)

// RecordHTTPRequestDuration records one served request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration records one database round trip.
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementStageTransition counts a transition attempt.
func IncrementStageTransition(direction, result string) {
	StageTransitionCount.WithLabelValues(direction, result).Inc()
}

// IncrementEventPublish counts a broker publish attempt.
func IncrementEventPublish(routingKey, status string) {
	EventPublishCount.WithLabelValues(routingKey, status).Inc()
}

// IncrementStageCache counts a cache lookup outcome.
func IncrementStageCache(outcome string) {
	StageCacheCount.WithLabelValues(outcome).Inc()
}
