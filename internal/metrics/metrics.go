// Package metrics exposes the Prometheus gauges/counters scraped at
// /metrics, kept in the teacher's promauto var-block-plus-recorder-funcs
// shape but re-labeled for the task/worker lifecycle instead of the
// teacher's priority-stream/DLQ model.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task metrics
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		},
		[]string{"task_name"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_tasks_completed_total",
			Help: "Total number of tasks reaching a terminal status",
		},
		[]string{"status"},
	)

	TaskRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskqueue_task_retries_total",
			Help: "Total number of task requeues (failed report or heartbeat timeout)",
		},
	)

	TaskTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_task_timeouts_total",
			Help: "Total number of reaper-driven timeout transitions",
		},
		[]string{"reason"},
	)

	// Dispatch metrics
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_fetch_attempts_total",
			Help: "Total number of dispatch Fetch calls, by whether a task was found",
		},
		[]string{"found"},
	)

	// Worker metrics
	WorkersCrashed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskqueue_workers_crashed_total",
			Help: "Total number of workers auto-suspended into CRASHED",
		},
	)

	// Event journal metrics
	EventsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_events_appended_total",
			Help: "Total number of event journal entries appended",
		},
		[]string{"entity_type"},
	)

	EventsStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_events_streamed_total",
			Help: "Total number of event envelopes written to live WebSocket subscribers",
		},
		[]string{"entity_type"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskqueue_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Redis metrics
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskqueue_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"operation"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskqueue_websocket_connections",
			Help: "Current number of live event-stream WebSocket connections",
		},
	)
)

// RecordTaskSubmission records a task submission.
func RecordTaskSubmission(taskName string) {
	TasksSubmitted.WithLabelValues(taskName).Inc()
}

// RecordTaskCompletion records a task reaching a terminal status.
func RecordTaskCompletion(status string) {
	TasksCompleted.WithLabelValues(status).Inc()
}

// RecordTaskRetry records a requeue (failed report or heartbeat timeout).
func RecordTaskRetry() {
	TaskRetries.Inc()
}

// RecordTaskTimeout records a reaper-driven timeout transition.
func RecordTaskTimeout(reason string) {
	TaskTimeouts.WithLabelValues(reason).Inc()
}

// RecordFetchAttempt records one dispatch.Fetch call.
func RecordFetchAttempt(found bool) {
	label := "false"
	if found {
		label = "true"
	}
	FetchAttempts.WithLabelValues(label).Inc()
}

// RecordWorkerCrashed records a worker auto-suspending into CRASHED.
func RecordWorkerCrashed() {
	WorkersCrashed.Inc()
}

// RecordEventAppended records one journal append.
func RecordEventAppended(entityType string) {
	EventsAppended.WithLabelValues(entityType).Inc()
}

// RecordEventStreamed records one event envelope written to a live
// WebSocket subscriber (distinct from RecordEventAppended, which fires
// once per transition regardless of how many subscribers receive it).
func RecordEventStreamed(entityType string) {
	EventsStreamed.WithLabelValues(entityType).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRedisOperation records a Redis operation.
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRedisError records a Redis error.
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}

// IncWebSocketConnections increments the live event-stream connection gauge.
func IncWebSocketConnections() {
	WebSocketConnections.Inc()
}

// DecWebSocketConnections decrements the live event-stream connection gauge.
func DecWebSocketConnections() {
	WebSocketConnections.Dec()
}
