package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	// promauto registers these at package init; just verify the vars exist.
	assert.NotNil(t, TasksSubmitted)
	assert.NotNil(t, TasksCompleted)
	assert.NotNil(t, TaskRetries)
	assert.NotNil(t, TaskTimeouts)

	assert.NotNil(t, FetchAttempts)

	assert.NotNil(t, WorkersCrashed)

	assert.NotNil(t, EventsAppended)
	assert.NotNil(t, EventsStreamed)

	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)

	assert.NotNil(t, RedisOperationDuration)
	assert.NotNil(t, RedisErrors)

	assert.NotNil(t, WebSocketConnections)
}

func TestRecordTaskSubmission(t *testing.T) {
	TasksSubmitted.Reset()
	RecordTaskSubmission("send-email")
	RecordTaskSubmission("send-email")
	RecordTaskSubmission("compute")

	assert.Equal(t, float64(2), testutil.ToFloat64(TasksSubmitted.WithLabelValues("send-email")))
	assert.Equal(t, float64(1), testutil.ToFloat64(TasksSubmitted.WithLabelValues("compute")))
}

func TestRecordTaskCompletion(t *testing.T) {
	TasksCompleted.Reset()
	RecordTaskCompletion("SUCCESS")
	RecordTaskCompletion("FAILED")
	RecordTaskCompletion("SUCCESS")

	assert.Equal(t, float64(2), testutil.ToFloat64(TasksCompleted.WithLabelValues("SUCCESS")))
	assert.Equal(t, float64(1), testutil.ToFloat64(TasksCompleted.WithLabelValues("FAILED")))
}

func TestRecordFetchAttempt(t *testing.T) {
	FetchAttempts.Reset()
	RecordFetchAttempt(true)
	RecordFetchAttempt(false)
	RecordFetchAttempt(true)

	assert.Equal(t, float64(2), testutil.ToFloat64(FetchAttempts.WithLabelValues("true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(FetchAttempts.WithLabelValues("false")))
}

func TestRecordEventAppendedAndStreamedAreDistinct(t *testing.T) {
	EventsAppended.Reset()
	EventsStreamed.Reset()

	RecordEventAppended("task")
	RecordEventStreamed("task")
	RecordEventStreamed("task")

	assert.Equal(t, float64(1), testutil.ToFloat64(EventsAppended.WithLabelValues("task")))
	assert.Equal(t, float64(2), testutil.ToFloat64(EventsStreamed.WithLabelValues("task")))
}

func TestWebSocketConnectionsGauge(t *testing.T) {
	WebSocketConnections.Set(0)
	IncWebSocketConnections()
	IncWebSocketConnections()
	DecWebSocketConnections()

	assert.Equal(t, float64(1), testutil.ToFloat64(WebSocketConnections))
}

func TestRecordTaskRetryAndTimeout(t *testing.T) {
	RecordTaskRetry()
	RecordTaskTimeout("TIMEOUT_HEARTBEAT")

	assert.GreaterOrEqual(t, testutil.ToFloat64(TaskRetries), float64(1))
	assert.GreaterOrEqual(t, testutil.ToFloat64(TaskTimeouts.WithLabelValues("TIMEOUT_HEARTBEAT")), float64(1))
}

func TestRecordRedisOperationAndError(t *testing.T) {
	RecordRedisOperation("get", 0.001)
	RecordRedisError("get")

	assert.GreaterOrEqual(t, testutil.ToFloat64(RedisErrors.WithLabelValues("get")), float64(1))
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest("GET", "/api/v1/queues/me/tasks", "200", 0.01)

	assert.GreaterOrEqual(t, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/queues/me/tasks", "200")), float64(1))
}
