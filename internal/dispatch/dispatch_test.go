package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

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

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.New(rdb)
	j := events.NewJournal(s)
	return NewDispatcher(s, j), s
}

func submit(t *testing.T, s *store.Store, queueID string, req *task.SubmitRequest) *task.Task {
	t.Helper()
	tk := task.New(queueID, req, 30)
	require.NoError(t, s.Put(context.Background(), store.CollTasks, tk.TaskID, tk))
	require.NoError(t, s.IndexAdd(context.Background(), store.TaskAllIndex(queueID), tk.TaskID))
	require.NoError(t, s.ZIndexAdd(context.Background(), store.TaskPendingIndex(queueID), tk.DispatchScore(), tk.TaskID))
	return tk
}

func TestFetchOrdersByPriorityThenCreatedAt(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	queueID := "q1"

	low := 10
	high := 20
	a := submit(t, s, queueID, &task.SubmitRequest{TaskName: "A", Priority: &low})
	b := submit(t, s, queueID, &task.SubmitRequest{TaskName: "B", Priority: &high})
	time.Sleep(time.Millisecond) // created_at ties are scored at millisecond resolution
	c := submit(t, s, queueID, &task.SubmitRequest{TaskName: "C", Priority: &high})

	r1, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID})
	require.NoError(t, err)
	require.True(t, r1.Found)
	assert.Equal(t, b.TaskID, r1.Task.TaskID)

	r2, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID})
	require.NoError(t, err)
	require.True(t, r2.Found)
	assert.Equal(t, c.TaskID, r2.Task.TaskID)

	r3, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID})
	require.NoError(t, err)
	require.True(t, r3.Found)
	assert.Equal(t, a.TaskID, r3.Task.TaskID)

	r4, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID})
	require.NoError(t, err)
	assert.False(t, r4.Found)
}

func TestFetchReturnsNotFoundOnEmptyQueue(t *testing.T) {
	d, _ := newTestDispatcher(t)
	r, err := d.Fetch(context.Background(), &FetchRequest{QueueID: "empty"})
	require.NoError(t, err)
	assert.False(t, r.Found)
	assert.Nil(t, r.Task)
}

func TestFetchRejectsUnavailableWorker(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	queueID := "q1"
	submit(t, s, queueID, &task.SubmitRequest{TaskName: "A"})

	w := worker.New(queueID, &worker.RegisterRequest{})
	require.NoError(t, w.Suspend())
	require.NoError(t, s.Put(ctx, store.CollWorkers, w.WorkerID, w))

	_, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID, WorkerID: w.WorkerID})
	require.Error(t, err)
	assert.Equal(t, apperr.KindWorkerNotAvailable, apperr.KindOf(err))
}

func TestFetchSkipsTasksMissingRequiredFields(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	queueID := "q1"
	submit(t, s, queueID, &task.SubmitRequest{TaskName: "A", Args: map[string]interface{}{"x": 1}})
	withField := submit(t, s, queueID, &task.SubmitRequest{TaskName: "B", Args: map[string]interface{}{"region": "us"}})

	r, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID, RequiredFields: []string{"region"}})
	require.NoError(t, err)
	require.True(t, r.Found)
	assert.Equal(t, withField.TaskID, r.Task.TaskID)
}

func TestFetchAppliesExtraFilter(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	queueID := "q1"
	submit(t, s, queueID, &task.SubmitRequest{TaskName: "A", Args: map[string]interface{}{"region": "eu"}})
	match := submit(t, s, queueID, &task.SubmitRequest{TaskName: "B", Args: map[string]interface{}{"region": "us"}})

	r, err := d.Fetch(ctx, &FetchRequest{
		QueueID:     queueID,
		ExtraFilter: map[string]interface{}{"args.region": "us"},
	})
	require.NoError(t, err)
	require.True(t, r.Found)
	assert.Equal(t, match.TaskID, r.Task.TaskID)
}

func TestFetchFallsBackToStickyCandidateWhenNoAlternative(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	queueID := "q1"
	w := worker.New(queueID, &worker.RegisterRequest{})
	require.NoError(t, s.Put(ctx, store.CollWorkers, w.WorkerID, w))
	workerID := w.WorkerID

	tk := submit(t, s, queueID, &task.SubmitRequest{TaskName: "A"})
	tk.Summary = map[string]interface{}{"_last_worker": workerID, "_last_result": "failed"}
	require.NoError(t, s.Put(ctx, store.CollTasks, tk.TaskID, tk))

	r, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID, WorkerID: workerID})
	require.NoError(t, err)
	require.True(t, r.Found)
	assert.Equal(t, tk.TaskID, r.Task.TaskID)
}

func TestFetchSetsEnteringRunningFieldsAndEmitsEvent(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	queueID := "q1"
	submit(t, s, queueID, &task.SubmitRequest{TaskName: "A"})
	w := worker.New(queueID, &worker.RegisterRequest{})
	require.NoError(t, s.Put(ctx, store.CollWorkers, w.WorkerID, w))

	r, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID, WorkerID: w.WorkerID, StartHeartbeat: true})
	require.NoError(t, err)
	require.True(t, r.Found)
	assert.Equal(t, task.StatusRunning, r.Task.Status)
	assert.Equal(t, w.WorkerID, r.Task.WorkerID)
	assert.NotNil(t, r.Task.LastHeartbeat)

	members, err := s.IndexMembers(ctx, store.TaskRunningIndex(queueID))
	require.NoError(t, err)
	assert.Contains(t, members, r.Task.TaskID)

	pending, err := s.ZIndexCard(ctx, store.TaskPendingIndex(queueID))
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestFetchWithoutStartHeartbeatLeavesHeartbeatNil(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	queueID := "q1"
	submit(t, s, queueID, &task.SubmitRequest{TaskName: "A"})
	w := worker.New(queueID, &worker.RegisterRequest{})
	require.NoError(t, s.Put(ctx, store.CollWorkers, w.WorkerID, w))

	r, err := d.Fetch(ctx, &FetchRequest{QueueID: queueID, WorkerID: w.WorkerID, StartHeartbeat: false})
	require.NoError(t, err)
	require.True(t, r.Found)
	assert.Nil(t, r.Task.LastHeartbeat)
}

func TestFetchConcurrentClaimsAreExclusive(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	queueID := "q1"

	const numTasks = 3
	for i := 0; i < numTasks; i++ {
		submit(t, s, queueID, &task.SubmitRequest{TaskName: "A"})
	}

	const numWorkers = 10
	var wg sync.WaitGroup
	results := make([]*FetchResult, numWorkers)
	errs := make([]error, numWorkers)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = d.Fetch(ctx, &FetchRequest{QueueID: queueID})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	found := 0
	for i := 0; i < numWorkers; i++ {
		require.NoError(t, errs[i])
		if results[i].Found {
			found++
			assert.False(t, seen[results[i].Task.TaskID], "task claimed more than once")
			seen[results[i].Task.TaskID] = true
		}
	}
	assert.Equal(t, numTasks, found)
}
