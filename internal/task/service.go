package task

import (
	"context"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/filter"
	"github.com/maumercado/task-queue-go/internal/metrics"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/validate"
)

// Service implements task submission, lookup, listing, and hard deletion
// against the record store (cancellation is report.Reporter.CancelTask) --
// the non-FSM half of
// C3, grounded on tenant.Service's CRUD shape so both entities persist the
// same way.
type Service struct {
	store *store.Store
}

func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Submit validates and persists a new PENDING task, adding it to the
// queue's all-tasks and pending-dispatch indexes (§4.3, §4.8). No event is
// emitted: submission is the task's creation, not a transition out of an
// existing state (§3 "Event Record").
func (svc *Service) Submit(ctx context.Context, queueID string, req *SubmitRequest, heartbeatIntervalSeconds float64) (*Task, error) {
	if req.TaskName != "" {
		if err := validate.Identifier(req.TaskName); err != nil {
			return nil, err
		}
	}
	if err := validate.Keys(req.Metadata); err != nil {
		return nil, err
	}
	if err := validate.Keys(req.Args); err != nil {
		return nil, err
	}
	if req.MaxRetries != nil {
		if err := validate.NonNegative("max_retries", *req.MaxRetries); err != nil {
			return nil, err
		}
	}

	t := New(queueID, req, heartbeatIntervalSeconds)

	if err := svc.store.Put(ctx, store.CollTasks, t.TaskID, t); err != nil {
		return nil, err
	}
	if err := svc.store.IndexAdd(ctx, store.TaskAllIndex(queueID), t.TaskID); err != nil {
		return nil, err
	}
	if err := svc.store.ZIndexAdd(ctx, store.TaskPendingIndex(queueID), t.DispatchScore(), t.TaskID); err != nil {
		return nil, err
	}
	metrics.RecordTaskSubmission(t.TaskName)
	return t, nil
}

// Get loads a task by id, rejecting cross-queue reads (a task_id that
// exists but belongs to a different queue is NOT_FOUND, not a leak).
func (svc *Service) Get(ctx context.Context, queueID, taskID string) (*Task, error) {
	var t Task
	if err := svc.store.Get(ctx, store.CollTasks, taskID, &t); err != nil {
		return nil, err
	}
	if t.QueueID != queueID {
		return nil, apperr.NotFoundf("no task %q in this queue", taskID)
	}
	return &t, nil
}

// ListOptions carries the §6 list query parameters.
type ListOptions struct {
	Offset      int
	Limit       int
	TaskID      string
	TaskName    string
	ExtraFilter map[string]interface{}
}

// List returns every task in queueID matching the options, applying
// offset/limit after filtering (there is no secondary index for arbitrary
// predicates, so this scans the queue's all-tasks set -- acceptable since
// that set is already queue-scoped and the reaper/dispatcher impose the
// same bound on their own hot-path scans).
func (svc *Service) List(ctx context.Context, queueID string, opts *ListOptions) ([]*Task, int, error) {
	ids, err := svc.store.IndexMembers(ctx, store.TaskAllIndex(queueID))
	if err != nil {
		return nil, 0, err
	}

	var matched []*Task
	for _, id := range ids {
		if opts.TaskID != "" && id != opts.TaskID {
			continue
		}
		var t Task
		if err := svc.store.Get(ctx, store.CollTasks, id, &t); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return nil, 0, err
		}
		if opts.TaskName != "" && t.TaskName != opts.TaskName {
			continue
		}
		if opts.ExtraFilter != nil {
			doc, err := filter.ToDoc(&t)
			if err != nil {
				return nil, 0, apperr.StoreFatal("encode task for filter", err)
			}
			if !filter.Match(doc, opts.ExtraFilter) {
				continue
			}
		}
		matched = append(matched, &t)
	}

	total := len(matched)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := total
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return matched[start:end], total, nil
}

// Delete removes a task record and its index membership outright (§6
// "GET/DELETE .../tasks/{id}"), regardless of status -- unlike Cancel
// (§4.2), this is an administrative hard delete, not a state transition.
func (svc *Service) Delete(ctx context.Context, queueID, taskID string) error {
	t, err := svc.Get(ctx, queueID, taskID)
	if err != nil {
		return err
	}
	if err := svc.store.IndexRemove(ctx, store.TaskAllIndex(queueID), taskID); err != nil {
		return err
	}
	if t.Status == StatusPending {
		_ = svc.store.ZIndexRemove(ctx, store.TaskPendingIndex(queueID), taskID)
	}
	if t.Status == StatusRunning {
		_ = svc.store.IndexRemove(ctx, store.TaskRunningIndex(queueID), taskID)
	}
	return svc.store.Delete(ctx, store.CollTasks, taskID)
}
