// Package dispatch implements the atomic fetch algorithm (C5): selecting
// the highest-priority eligible PENDING task for a queue and transitioning
// it to RUNNING bound to a worker, generalized from the teacher's
// RedisQueue.Dequeue priority-stream scan into a store-transactional claim
// over a single sorted-set index.
package dispatch

import (
	"context"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/filter"
	"github.com/maumercado/task-queue-go/internal/metrics"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/maumercado/task-queue-go/internal/validate"
	"github.com/maumercado/task-queue-go/internal/worker"
)

// candidateScanLimit bounds how many pending candidates a single fetch
// inspects before giving up, so a queue with a large backlog of
// filter-ineligible tasks cannot make a fetch call unboundedly expensive.
const candidateScanLimit = 500

// FetchRequest carries the §4.3 fetch inputs.
type FetchRequest struct {
	QueueID        string
	WorkerID       string
	StartHeartbeat bool
	RequiredFields []string
	ExtraFilter    map[string]interface{}
}

// FetchResult is the outcome of a fetch attempt.
type FetchResult struct {
	Found bool
	Task  *task.Task
}

// Dispatcher implements Fetch.
type Dispatcher struct {
	store   *store.Store
	journal *events.Journal
}

func NewDispatcher(s *store.Store, j *events.Journal) *Dispatcher {
	return &Dispatcher{store: s, journal: j}
}

// Fetch runs the full §4.3 selection algorithm inside one per-queue
// transaction.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.WorkerID != "" {
		var w worker.Worker
		if err := d.store.Get(ctx, store.CollWorkers, req.WorkerID, &w); err != nil {
			return nil, err
		}
		if !w.IsAvailable() {
			return nil, apperr.WorkerNotAvailable("worker is not ACTIVE")
		}
	}

	var result FetchResult
	err := d.store.Transaction(ctx, req.QueueID, func(ctx context.Context) error {
		candidateIDs, err := d.store.ZIndexRange(ctx, store.TaskPendingIndex(req.QueueID), candidateScanLimit)
		if err != nil {
			return err
		}

		var chosen *task.Task
		var fallback *task.Task
		for _, id := range candidateIDs {
			var t task.Task
			if err := d.store.Get(ctx, store.CollTasks, id, &t); err != nil {
				continue
			}
			if t.Status != task.StatusPending {
				continue
			}
			if !requiredFieldsPresent(&t, req.RequiredFields) {
				continue
			}
			if req.ExtraFilter != nil {
				doc, err := filter.ToDoc(&t)
				if err != nil {
					return apperr.StoreFatal("encode task for filter", err)
				}
				if !filter.Match(doc, req.ExtraFilter) {
					continue
				}
			}

			if fallback == nil {
				fallback = &t
			}
			if !isStickyTo(&t, req.WorkerID) {
				chosen = &t
				break
			}
		}

		// Soft anti-stickiness (§4.3 step 2): prefer a non-sticky candidate,
		// but fall back to the sticky one rather than leave the task
		// unclaimed when it is the only option.
		if chosen == nil {
			chosen = fallback
		}
		if chosen == nil {
			metrics.RecordFetchAttempt(false)
			result = FetchResult{Found: false}
			return nil
		}

		oldState := string(chosen.Status)
		chosen.EnterRunning(req.WorkerID)
		if !req.StartHeartbeat {
			chosen.LastHeartbeat = nil
		}

		if err := d.store.Put(ctx, store.CollTasks, chosen.TaskID, chosen); err != nil {
			return err
		}
		if err := d.store.ZIndexRemove(ctx, store.TaskPendingIndex(req.QueueID), chosen.TaskID); err != nil {
			return err
		}
		if err := d.store.IndexAdd(ctx, store.TaskRunningIndex(req.QueueID), chosen.TaskID); err != nil {
			return err
		}

		snapshot, err := filter.ToDoc(chosen)
		if err != nil {
			return apperr.StoreFatal("encode task snapshot", err)
		}
		if _, err := d.journal.Append(ctx, req.QueueID, &events.EventRecord{
			EntityType: events.EntityTask,
			EntityID:   chosen.TaskID,
			OldState:   oldState,
			NewState:   string(chosen.Status),
			EntityData: snapshot,
		}); err != nil {
			return err
		}
		metrics.RecordEventAppended(string(events.EntityTask))
		metrics.RecordFetchAttempt(true)

		result = FetchResult{Found: true, Task: chosen}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func requiredFieldsPresent(t *task.Task, paths []string) bool {
	for _, p := range paths {
		if !validate.DottedPathExists(t.Args, p) {
			return false
		}
	}
	return true
}

// isStickyTo reports whether t's last terminal attempt was a failure by
// the given worker (§4.3 step 2), read from summary._last_worker /
// summary._last_result, which report.ReportStatus (on a failed report) and
// the reaper's timeout path (reaper.timeoutOne) write.
func isStickyTo(t *task.Task, workerID string) bool {
	if workerID == "" || t.Summary == nil {
		return false
	}
	lastWorker, _ := t.Summary["_last_worker"].(string)
	lastResult, _ := t.Summary["_last_result"].(string)
	return lastWorker == workerID && lastResult == "failed"
}
