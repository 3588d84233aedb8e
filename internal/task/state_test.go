package task

import (
	"testing"
	"time"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterRunningSetsEntryEffects(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)

	tk.EnterRunning("w1")

	assert.Equal(t, StatusRunning, tk.Status)
	assert.Equal(t, "w1", tk.WorkerID)
	require.NotNil(t, tk.StartTime)
	require.NotNil(t, tk.LastHeartbeat)
}

func TestEnterRunningKeepsOriginalStartTimeOnRequeueCycle(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)
	tk.EnterRunning("w1")
	firstStart := *tk.StartTime

	tk.Requeue()
	time.Sleep(time.Millisecond)
	tk.EnterRunning("w2")

	assert.Equal(t, firstStart, *tk.StartTime)
}

func TestRequeueIncrementsRetriesAndClearsWorker(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)
	tk.EnterRunning("w1")

	tk.Requeue()

	assert.Equal(t, StatusPending, tk.Status)
	assert.Equal(t, 1, tk.Retries)
	assert.Empty(t, tk.WorkerID)
	assert.Nil(t, tk.LastHeartbeat)
	assert.NotNil(t, tk.StartTime)
}

func TestEnterTerminalMergesSummaryAndClearsWorker(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)
	tk.EnterRunning("w1")
	tk.Summary = map[string]interface{}{"existing": "keep"}

	tk.EnterTerminal(StatusSuccess, map[string]interface{}{"result": "ok"})

	assert.Equal(t, StatusSuccess, tk.Status)
	assert.Empty(t, tk.WorkerID)
	assert.Equal(t, "keep", tk.Summary["existing"])
	assert.Equal(t, "ok", tk.Summary["result"])
}

func TestApplyReportRejectsNonRunning(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)

	_, _, err := tk.ApplyReport(ReportSuccess)

	assert.Error(t, err)
	assert.Equal(t, apperr.KindInvalidStateTransition, apperr.KindOf(err))
}

func TestApplyReportRejectsTerminalTask(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)
	tk.EnterRunning("w1")
	tk.EnterTerminal(StatusSuccess, nil)

	_, _, err := tk.ApplyReport(ReportFailed)

	assert.Error(t, err)
	assert.Equal(t, apperr.KindInvalidStateTransition, apperr.KindOf(err))
}

func TestApplyReportFailedRequeuesWhenBudgetRemains(t *testing.T) {
	maxRetries := 3
	tk := New("q1", &SubmitRequest{MaxRetries: &maxRetries}, 5)
	tk.EnterRunning("w1")

	next, isRequeue, err := tk.ApplyReport(ReportFailed)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, next)
	assert.True(t, isRequeue)
}

func TestApplyReportFailedGoesToFailedWhenBudgetExhaustedMaxRetriesZero(t *testing.T) {
	maxRetries := 0
	tk := New("q1", &SubmitRequest{MaxRetries: &maxRetries}, 5)
	tk.EnterRunning("w1")

	next, isRequeue, err := tk.ApplyReport(ReportFailed)

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, next)
	assert.False(t, isRequeue)
}

func TestApplyTimeoutTaskTimeoutIsUnconditionalFailed(t *testing.T) {
	maxRetries := 5
	tk := New("q1", &SubmitRequest{MaxRetries: &maxRetries}, 5)
	tk.EnterRunning("w1")

	next, isRequeue := tk.ApplyTimeout(TimeoutTask)

	assert.Equal(t, StatusFailed, next)
	assert.False(t, isRequeue)
}

func TestApplyTimeoutHeartbeatRequeuesWithinBudget(t *testing.T) {
	maxRetries := 1
	tk := New("q1", &SubmitRequest{MaxRetries: &maxRetries}, 5)
	tk.EnterRunning("w1")

	next, isRequeue := tk.ApplyTimeout(TimeoutHeartbeat)

	assert.Equal(t, StatusPending, next)
	assert.True(t, isRequeue)
}

func TestRefreshHeartbeatNoOpWhenNotRunning(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)

	ok := tk.RefreshHeartbeat()

	assert.False(t, ok)
}

func TestRefreshHeartbeatIsMonotonic(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)
	tk.EnterRunning("w1")
	first := *tk.LastHeartbeat

	time.Sleep(time.Millisecond)
	ok := tk.RefreshHeartbeat()

	require.True(t, ok)
	assert.True(t, tk.LastHeartbeat.After(first) || tk.LastHeartbeat.Equal(first))
}

func TestCancelOnlyAllowedFromPending(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)
	require.NoError(t, tk.Cancel())
	assert.Equal(t, StatusCancelled, tk.Status)

	tk2 := New("q1", &SubmitRequest{}, 5)
	tk2.EnterRunning("w1")
	assert.Error(t, tk2.Cancel())
}

func TestHeartbeatExpired(t *testing.T) {
	tk := New("q1", &SubmitRequest{HeartbeatTimeout: 1}, 5)
	tk.EnterRunning("w1")
	past := time.Now().UTC().Add(-2 * time.Second)
	tk.LastHeartbeat = &past

	assert.True(t, tk.HeartbeatExpired(time.Now().UTC()))
}

func TestTaskTimeoutExpired(t *testing.T) {
	timeout := 1
	tk := New("q1", &SubmitRequest{TaskTimeout: &timeout}, 5)
	tk.EnterRunning("w1")
	past := time.Now().UTC().Add(-2 * time.Second)
	tk.StartTime = &past

	assert.True(t, tk.TaskTimeoutExpired(time.Now().UTC()))
}

func TestTaskTimeoutNotSetNeverExpires(t *testing.T) {
	tk := New("q1", &SubmitRequest{}, 5)
	tk.EnterRunning("w1")

	assert.False(t, tk.TaskTimeoutExpired(time.Now().UTC().Add(time.Hour)))
}
