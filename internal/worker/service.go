package worker

import (
	"context"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/validate"
)

// Service implements worker registration, lookup, listing, and deletion
// against the record store, mirroring task.Service's CRUD shape (§6
// "POST/GET/DELETE .../workers[...] mirroring tasks").
type Service struct {
	store *store.Store
}

func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Register validates and persists a new ACTIVE worker record.
func (svc *Service) Register(ctx context.Context, queueID string, req *RegisterRequest) (*Worker, error) {
	if req.WorkerName != "" {
		if err := validate.Identifier(req.WorkerName); err != nil {
			return nil, err
		}
	}
	if err := validate.Keys(req.Metadata); err != nil {
		return nil, err
	}
	if req.MaxRetries != nil {
		if err := validate.NonNegative("max_retries", *req.MaxRetries); err != nil {
			return nil, err
		}
	}

	w := New(queueID, req)
	if err := svc.store.Put(ctx, store.CollWorkers, w.WorkerID, w); err != nil {
		return nil, err
	}
	if err := svc.store.IndexAdd(ctx, store.WorkerAllIndex(queueID), w.WorkerID); err != nil {
		return nil, err
	}
	return w, nil
}

// Get loads a worker by id, scoped to queueID.
func (svc *Service) Get(ctx context.Context, queueID, workerID string) (*Worker, error) {
	var w Worker
	if err := svc.store.Get(ctx, store.CollWorkers, workerID, &w); err != nil {
		return nil, err
	}
	if w.QueueID != queueID {
		return nil, apperr.NotFoundf("no worker %q in this queue", workerID)
	}
	return &w, nil
}

// List returns every worker registered to queueID.
func (svc *Service) List(ctx context.Context, queueID string, offset, limit int) ([]*Worker, int, error) {
	ids, err := svc.store.IndexMembers(ctx, store.WorkerAllIndex(queueID))
	if err != nil {
		return nil, 0, err
	}

	var all []*Worker
	for _, id := range ids {
		var w Worker
		if err := svc.store.Get(ctx, store.CollWorkers, id, &w); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return nil, 0, err
		}
		all = append(all, &w)
	}

	total := len(all)
	start := offset
	if start > total {
		start = total
	}
	end := total
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return all[start:end], total, nil
}

// Delete removes a worker record and its index membership.
func (svc *Service) Delete(ctx context.Context, queueID, workerID string) error {
	if _, err := svc.Get(ctx, queueID, workerID); err != nil {
		return err
	}
	if err := svc.store.IndexRemove(ctx, store.WorkerAllIndex(queueID), workerID); err != nil {
		return err
	}
	return svc.store.Delete(ctx, store.CollWorkers, workerID)
}
