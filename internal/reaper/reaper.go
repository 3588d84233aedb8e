// Package reaper implements the timeout sweep (C6): periodically scanning
// each queue's RUNNING tasks for an expired heartbeat or task timeout and
// applying the §4.4 timeout transition, generalized from the teacher's
// Scheduler.processDueTasks sweep-and-transition loop.
package reaper

import (
	"context"
	"time"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/metrics"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/maumercado/task-queue-go/internal/worker"
)

// queueLister enumerates live queue_ids; satisfied by *tenant.Service.
type queueLister interface {
	AllQueueIDs(ctx context.Context) ([]string, error)
}

// Reaper implements SweepQueue / SweepAll.
type Reaper struct {
	store   *store.Store
	journal *events.Journal
	queues  queueLister
	limit   int64
}

// New builds a Reaper bounding each queue's sweep to at most limit RUNNING
// tasks per tick (§4.4 "bounded sweep"), so a queue with a very large
// running set cannot monopolize a tick. A limit <= 0 means no bound.
func New(s *store.Store, j *events.Journal, queues queueLister, limit int64) *Reaper {
	return &Reaper{store: s, journal: j, queues: queues, limit: limit}
}

// SweepAll runs SweepQueue over every live queue, logging (not returning)
// a per-queue failure so one bad queue cannot block the rest of the tick
// (§7 "reaper failures are logged, never fatal").
func (r *Reaper) SweepAll(ctx context.Context) (int, error) {
	queueIDs, err := r.queues.AllQueueIDs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, queueID := range queueIDs {
		n, err := r.SweepQueue(ctx, queueID)
		if err != nil {
			logger.Error().Err(err).Str("queue_id", queueID).Msg("reaper sweep failed")
			continue
		}
		total += n
	}
	return total, nil
}

// SweepQueue inspects up to r.limit RUNNING tasks in queueID and times out
// any whose heartbeat or task deadline has expired, returning the count of
// tasks it transitioned.
func (r *Reaper) SweepQueue(ctx context.Context, queueID string) (int, error) {
	swept := 0
	err := r.store.Transaction(ctx, queueID, func(ctx context.Context) error {
		members, err := r.store.IndexMembers(ctx, store.TaskRunningIndex(queueID))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		scanned := int64(0)
		for _, taskID := range members {
			if r.limit > 0 && scanned >= r.limit {
				break
			}
			scanned++

			var t task.Task
			if err := r.store.Get(ctx, store.CollTasks, taskID, &t); err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					r.store.IndexRemove(ctx, store.TaskRunningIndex(queueID), taskID)
					continue
				}
				return err
			}

			reason, expired := expiry(&t, now)
			if !expired {
				continue
			}

			if err := r.timeoutOne(ctx, queueID, &t, reason); err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return swept, err
	}
	return swept, nil
}

// expiry reports which timeout condition (if any) applies to t as of now.
// A task_timeout takes precedence since it is unconditional FAILED (§4.4).
func expiry(t *task.Task, now time.Time) (task.TimeoutReason, bool) {
	if t.TaskTimeoutExpired(now) {
		return task.TimeoutTask, true
	}
	if t.HeartbeatExpired(now) {
		return task.TimeoutHeartbeat, true
	}
	return "", false
}

// timeoutOne applies the §4.4 transition for one expired task: computes
// the next status, updates worker retry bookkeeping and stickiness whenever
// the task has a worker (on both the requeue and the FAILED path), and
// appends the resulting event(s). Must run inside the
// caller's store.Transaction.
func (r *Reaper) timeoutOne(ctx context.Context, queueID string, t *task.Task, reason task.TimeoutReason) error {
	oldState := string(t.Status)
	next, isRequeue := t.ApplyTimeout(reason)

	var crashedWorker *worker.Worker
	workerID := t.WorkerID
	if workerID != "" {
		if t.Summary == nil {
			t.Summary = map[string]interface{}{}
		}
		t.Summary["_last_worker"] = workerID
		t.Summary["_last_result"] = "failed"

		var err error
		crashedWorker, err = recordWorkerFailure(ctx, r.store, workerID)
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
		t.EnterTerminal(next, map[string]interface{}{"timeout_reason": string(reason)})
		if err := r.store.IndexRemove(ctx, store.TaskRunningIndex(queueID), t.TaskID); err != nil {
			return err
		}
		metrics.RecordTaskCompletion(string(t.Status))
	}
	metrics.RecordTaskTimeout(string(reason))

	if err := r.store.Put(ctx, store.CollTasks, t.TaskID, t); err != nil {
		return err
	}

	snapshot, err := snapshotOf(t)
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

	logger.Debug().
		Str("queue_id", queueID).
		Str("task_id", t.TaskID).
		Str("reason", string(reason)).
		Str("new_state", string(t.Status)).
		Msg("reaped timed-out task")

	return nil
}

func recordWorkerFailure(ctx context.Context, s *store.Store, workerID string) (*worker.Worker, error) {
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
