// Package report implements the status reporter (C7): applying
// worker-submitted terminal reports and heartbeat refreshes, generalized
// from the teacher's worker.Pool success/failure handlers into a
// store-transactional operation over the task/worker/event records.
package report

import (
	"context"
	"encoding/json"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/metrics"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/maumercado/task-queue-go/internal/worker"
)

// Reporter implements ReportStatus and RefreshHeartbeat.
type Reporter struct {
	store   *store.Store
	journal *events.Journal
}

func NewReporter(s *store.Store, j *events.Journal) *Reporter {
	return &Reporter{store: s, journal: j}
}

// ReportStatus applies a worker-submitted terminal report (§4.5).
func (r *Reporter) ReportStatus(ctx context.Context, queueID, taskID string, status task.ReportableStatus, summaryUpdate map[string]interface{}) (*task.Task, error) {
	var result *task.Task
	err := r.store.Transaction(ctx, queueID, func(ctx context.Context) error {
		var t task.Task
		if err := r.store.Get(ctx, store.CollTasks, taskID, &t); err != nil {
			return err
		}

		oldState := string(t.Status)
		next, isRequeue, err := t.ApplyReport(status)
		if err != nil {
			return err
		}

		var crashedWorker *worker.Worker
		if status == task.ReportFailed {
			if t.Summary == nil {
				t.Summary = map[string]interface{}{}
			}
			t.Summary["_last_worker"] = t.WorkerID
			t.Summary["_last_result"] = "failed"

			crashedWorker, err = recordWorkerFailure(ctx, r.store, t.WorkerID)
			if err != nil {
				return err
			}
		}

		if isRequeue {
			t.Requeue()
			if err := r.store.ZIndexAdd(ctx, store.TaskPendingIndex(queueID), t.DispatchScore(), t.TaskID); err != nil {
				return err
			}
			if err := r.store.IndexRemove(ctx, store.TaskRunningIndex(queueID), t.TaskID); err != nil {
				return err
			}
			metrics.RecordTaskRetry()
		} else {
			t.EnterTerminal(next, summaryUpdate)
			if err := r.store.IndexRemove(ctx, store.TaskRunningIndex(queueID), t.TaskID); err != nil {
				return err
			}
			metrics.RecordTaskCompletion(string(t.Status))
		}

		if err := r.store.Put(ctx, store.CollTasks, t.TaskID, &t); err != nil {
			return err
		}

		snapshot, err := snapshotOf(&t)
		if err != nil {
			return err
		}
		if _, err := r.journal.Append(ctx, queueID, &events.EventRecord{
			EntityType: events.EntityTask,
			EntityID:   t.TaskID,
			OldState:   oldState,
			NewState:   string(t.Status),
			EntityData: snapshot,
		}); err != nil {
			return err
		}
		metrics.RecordEventAppended(string(events.EntityTask))

		if crashedWorker != nil {
			wSnapshot, err := snapshotOf(crashedWorker)
			if err != nil {
				return err
			}
			if _, err := r.journal.Append(ctx, queueID, &events.EventRecord{
				EntityType: events.EntityWorker,
				EntityID:   crashedWorker.WorkerID,
				OldState:   string(worker.StatusActive),
				NewState:   string(crashedWorker.Status),
				EntityData: wSnapshot,
			}); err != nil {
				return err
			}
			metrics.RecordEventAppended(string(events.EntityWorker))
			metrics.RecordWorkerCrashed()
		}

		result = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelTask applies the PENDING --cancel--> CANCELLED transition (§4.2),
// removing the task from the pending-dispatch index and appending the
// resulting event. Any other status rejects with INVALID_STATE_TRANSITION
// (terminal states are absorbing; a RUNNING task cannot be cancelled
// directly -- its holder must report or the reaper must time it out).
func (r *Reporter) CancelTask(ctx context.Context, queueID, taskID string) (*task.Task, error) {
	var result *task.Task
	err := r.store.Transaction(ctx, queueID, func(ctx context.Context) error {
		var t task.Task
		if err := r.store.Get(ctx, store.CollTasks, taskID, &t); err != nil {
			return err
		}

		oldState := string(t.Status)
		if err := t.Cancel(); err != nil {
			return err
		}

		if err := r.store.Put(ctx, store.CollTasks, t.TaskID, &t); err != nil {
			return err
		}
		if err := r.store.ZIndexRemove(ctx, store.TaskPendingIndex(queueID), t.TaskID); err != nil {
			return err
		}

		snapshot, err := snapshotOf(&t)
		if err != nil {
			return err
		}
		if _, err := r.journal.Append(ctx, queueID, &events.EventRecord{
			EntityType: events.EntityTask,
			EntityID:   t.TaskID,
			OldState:   oldState,
			NewState:   string(t.Status),
			EntityData: snapshot,
		}); err != nil {
			return err
		}
		metrics.RecordEventAppended(string(events.EntityTask))
		metrics.RecordTaskCompletion(string(t.Status))

		result = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RefreshHeartbeat sets last_heartbeat = now only if the task is RUNNING;
// returns false (no error) if there was no match (§4.5). No event is
// emitted.
func (r *Reporter) RefreshHeartbeat(ctx context.Context, queueID, taskID string) (bool, error) {
	var ok bool
	err := r.store.Transaction(ctx, queueID, func(ctx context.Context) error {
		var t task.Task
		if err := r.store.Get(ctx, store.CollTasks, taskID, &t); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				ok = false
				return nil
			}
			return err
		}
		ok = t.RefreshHeartbeat()
		if !ok {
			return nil
		}
		return r.store.Put(ctx, store.CollTasks, t.TaskID, &t)
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ResetWorker brings a CRASHED/FAILED worker back to ACTIVE (supplemented
// feature, see SPEC_FULL.md "Admin worker reset"). A thin convenience
// wrapper over UpdateWorkerStatus kept for callers that only ever reset.
func (r *Reporter) ResetWorker(ctx context.Context, queueID, workerID string) (*worker.Worker, error) {
	return r.UpdateWorkerStatus(ctx, queueID, workerID, worker.AdminActive)
}

// UpdateWorkerStatus drives the admin-facing §4.6 worker transitions
// (ACTIVE<->SUSPENDED, ->FAILED, and the CRASHED/FAILED->ACTIVE reset),
// matching labtasker's worker status-update endpoint. Every transition
// appends an entity_type=worker event, same as the other worker-touching
// paths in this package.
func (r *Reporter) UpdateWorkerStatus(ctx context.Context, queueID, workerID string, target worker.AdminStatus) (*worker.Worker, error) {
	var result *worker.Worker
	err := r.store.Transaction(ctx, queueID, func(ctx context.Context) error {
		var w worker.Worker
		if err := r.store.Get(ctx, store.CollWorkers, workerID, &w); err != nil {
			return err
		}
		oldState := string(w.Status)
		if err := w.ApplyAdminStatus(target); err != nil {
			return err
		}
		if err := r.store.Put(ctx, store.CollWorkers, w.WorkerID, &w); err != nil {
			return err
		}
		snapshot, err := snapshotOf(&w)
		if err != nil {
			return err
		}
		if _, err := r.journal.Append(ctx, queueID, &events.EventRecord{
			EntityType: events.EntityWorker,
			EntityID:   w.WorkerID,
			OldState:   oldState,
			NewState:   string(w.Status),
			EntityData: snapshot,
		}); err != nil {
			return err
		}
		metrics.RecordEventAppended(string(events.EntityWorker))
		result = &w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordWorkerFailure increments the worker's consecutive-failure count
// and returns the worker if this call crashed it (§4.4 step 3, reused by
// the reporter's failed-report path).
func recordWorkerFailure(ctx context.Context, s *store.Store, workerID string) (*worker.Worker, error) {
	if workerID == "" {
		return nil, nil
	}
	var w worker.Worker
	if err := s.Get(ctx, store.CollWorkers, workerID, &w); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	crashed := w.RecordFailure()
	if err := s.Put(ctx, store.CollWorkers, w.WorkerID, &w); err != nil {
		return nil, err
	}
	if crashed {
		return &w, nil
	}
	return nil, nil
}

// snapshotOf flattens a record into the generic document shape stored on
// each event (mirrors filter.ToDoc; kept package-local since events only
// needs a plain map, not the filter machinery).
func snapshotOf(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.StoreFatal("encode snapshot", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.StoreFatal("decode snapshot", err)
	}
	return doc, nil
}
