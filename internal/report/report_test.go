package report

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/maumercado/task-queue-go/internal/worker"
)

func newTestReporter(t *testing.T) (*Reporter, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.New(rdb)
	j := events.NewJournal(s)
	return NewReporter(s, j), s
}

func runningTask(t *testing.T, s *store.Store, queueID, workerID string, maxRetries int) *task.Task {
	t.Helper()
	ctx := context.Background()
	tk := task.New(queueID, &task.SubmitRequest{TaskName: "A", MaxRetries: &maxRetries}, 30)
	tk.EnterRunning(workerID)
	require.NoError(t, s.Put(ctx, store.CollTasks, tk.TaskID, tk))
	require.NoError(t, s.IndexAdd(ctx, store.TaskRunningIndex(queueID), tk.TaskID))
	return tk
}

func registerWorker(t *testing.T, s *store.Store, queueID string, maxRetries int) *worker.Worker {
	t.Helper()
	w := worker.New(queueID, &worker.RegisterRequest{MaxRetries: &maxRetries})
	require.NoError(t, s.Put(context.Background(), store.CollWorkers, w.WorkerID, w))
	return w
}

func TestReportSuccessMovesTaskToSuccessAndClearsWorker(t *testing.T) {
	r, s := newTestReporter(t)
	ctx := context.Background()
	queueID := "q1"
	w := registerWorker(t, s, queueID, 3)
	tk := runningTask(t, s, queueID, w.WorkerID, 3)

	out, err := r.ReportStatus(ctx, queueID, tk.TaskID, task.ReportSuccess, map[string]interface{}{"result": 42})
	require.NoError(t, err)
	assert.Equal(t, task.StatusSuccess, out.Status)
	assert.Empty(t, out.WorkerID)
	assert.EqualValues(t, 42, out.Summary["result"])

	members, err := s.IndexMembers(ctx, store.TaskRunningIndex(queueID))
	require.NoError(t, err)
	assert.NotContains(t, members, tk.TaskID)
}

func TestReportFailedRequeuesWithinRetryBudgetAndRecordsStickiness(t *testing.T) {
	r, s := newTestReporter(t)
	ctx := context.Background()
	queueID := "q1"
	w := registerWorker(t, s, queueID, 3)
	tk := runningTask(t, s, queueID, w.WorkerID, 3)

	out, err := r.ReportStatus(ctx, queueID, tk.TaskID, task.ReportFailed, nil)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, out.Status)
	assert.Equal(t, 1, out.Retries)
	assert.Empty(t, out.WorkerID)
	assert.Equal(t, w.WorkerID, out.Summary["_last_worker"])
	assert.Equal(t, "failed", out.Summary["_last_result"])

	pending, err := s.ZIndexCard(ctx, store.TaskPendingIndex(queueID))
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	var gotWorker worker.Worker
	require.NoError(t, s.Get(ctx, store.CollWorkers, w.WorkerID, &gotWorker))
	assert.Equal(t, 1, gotWorker.Retries)
	assert.Equal(t, worker.StatusActive, gotWorker.Status)
}

func TestReportFailedAtZeroMaxRetriesGoesStraightToFailed(t *testing.T) {
	r, s := newTestReporter(t)
	ctx := context.Background()
	queueID := "q1"
	w := registerWorker(t, s, queueID, 3)
	tk := runningTask(t, s, queueID, w.WorkerID, 0)

	out, err := r.ReportStatus(ctx, queueID, tk.TaskID, task.ReportFailed, nil)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, out.Status)
	assert.Equal(t, 0, out.Retries)
}

func TestReportFailedCrashesWorkerAtThreshold(t *testing.T) {
	r, s := newTestReporter(t)
	ctx := context.Background()
	queueID := "q1"
	w := registerWorker(t, s, queueID, 1)
	tk := runningTask(t, s, queueID, w.WorkerID, 5)

	_, err := r.ReportStatus(ctx, queueID, tk.TaskID, task.ReportFailed, nil)
	require.NoError(t, err)

	var gotWorker worker.Worker
	require.NoError(t, s.Get(ctx, store.CollWorkers, w.WorkerID, &gotWorker))
	assert.Equal(t, worker.StatusCrashed, gotWorker.Status)
}

func TestReportRejectsTerminalTask(t *testing.T) {
	r, s := newTestReporter(t)
	ctx := context.Background()
	queueID := "q1"
	w := registerWorker(t, s, queueID, 3)
	tk := runningTask(t, s, queueID, w.WorkerID, 3)

	_, err := r.ReportStatus(ctx, queueID, tk.TaskID, task.ReportSuccess, nil)
	require.NoError(t, err)

	_, err = r.ReportStatus(ctx, queueID, tk.TaskID, task.ReportSuccess, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidStateTransition, apperr.KindOf(err))

	var unchanged task.Task
	require.NoError(t, s.Get(ctx, store.CollTasks, tk.TaskID, &unchanged))
	assert.Equal(t, task.StatusSuccess, unchanged.Status)
}

func TestRefreshHeartbeatUpdatesRunningTask(t *testing.T) {
	r, s := newTestReporter(t)
	ctx := context.Background()
	queueID := "q1"
	w := registerWorker(t, s, queueID, 3)
	tk := runningTask(t, s, queueID, w.WorkerID, 3)
	before := *tk.LastHeartbeat

	ok, err := r.RefreshHeartbeat(ctx, queueID, tk.TaskID)
	require.NoError(t, err)
	assert.True(t, ok)

	var updated task.Task
	require.NoError(t, s.Get(ctx, store.CollTasks, tk.TaskID, &updated))
	assert.True(t, updated.LastHeartbeat.Equal(before) || updated.LastHeartbeat.After(before))
}

func TestRefreshHeartbeatReturnsFalseForUnknownTask(t *testing.T) {
	r, _ := newTestReporter(t)
	ok, err := r.RefreshHeartbeat(context.Background(), "q1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetWorkerBringsBackCrashedWorker(t *testing.T) {
	r, s := newTestReporter(t)
	ctx := context.Background()
	queueID := "q1"
	w := registerWorker(t, s, queueID, 1)
	tk := runningTask(t, s, queueID, w.WorkerID, 5)
	_, err := r.ReportStatus(ctx, queueID, tk.TaskID, task.ReportFailed, nil)
	require.NoError(t, err)

	reset, err := r.ResetWorker(ctx, queueID, w.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusActive, reset.Status)
	assert.Zero(t, reset.Retries)
}

func TestUpdateWorkerStatusSuspendAndFail(t *testing.T) {
	r, s := newTestReporter(t)
	ctx := context.Background()
	queueID := "q1"
	w := registerWorker(t, s, queueID, 3)

	suspended, err := r.UpdateWorkerStatus(ctx, queueID, w.WorkerID, worker.AdminSuspended)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusSuspended, suspended.Status)

	failed, err := r.UpdateWorkerStatus(ctx, queueID, w.WorkerID, worker.AdminFailed)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusFailed, failed.Status)

	active, err := r.UpdateWorkerStatus(ctx, queueID, w.WorkerID, worker.AdminActive)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusActive, active.Status)
}
