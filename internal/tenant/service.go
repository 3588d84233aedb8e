package tenant

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/maumercado/task-queue-go/internal/validate"
)

// Service implements queue create/get/update/delete against the record
// store, grounded on the teacher's RedisQueue connection-lifecycle idiom
// but generalized to a multi-tenant namespace instead of a single process
// queue.
type Service struct {
	store *store.Store
}

func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// CreateQueue rejects duplicate names with QUEUE_EXISTS and stores a
// bcrypt hash of the password (§4.8).
func (svc *Service) CreateQueue(ctx context.Context, name, password string, metadata map[string]interface{}) (*Queue, error) {
	if err := validate.Identifier(name); err != nil {
		return nil, err
	}
	if err := validate.Keys(metadata); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.StoreFatal("hash password", err)
	}

	q := newQueue(name, string(hash), metadata)

	claimed, err := svc.store.HashSetNX(ctx, store.QueueNameIndex, name, q.QueueID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperr.QueueExists("a queue named " + name + " already exists")
	}

	if err := svc.store.Put(ctx, store.CollQueues, q.QueueID, q); err != nil {
		_ = svc.store.HashDelete(ctx, store.QueueNameIndex, name)
		return nil, err
	}
	if err := svc.store.IndexAdd(ctx, store.QueueAllIndex, q.QueueID); err != nil {
		return nil, err
	}

	return q, nil
}

// AllQueueIDs returns every live queue_id, used by the reaper's per-tick
// enumeration.
func (svc *Service) AllQueueIDs(ctx context.Context) ([]string, error) {
	return svc.store.IndexMembers(ctx, store.QueueAllIndex)
}

// GetQueue loads a queue by ID.
func (svc *Service) GetQueue(ctx context.Context, queueID string) (*Queue, error) {
	var q Queue
	if err := svc.store.Get(ctx, store.CollQueues, queueID, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQueueByName resolves a queue_name to its record, used by the Basic
// auth middleware.
func (svc *Service) GetQueueByName(ctx context.Context, name string) (*Queue, error) {
	queueID, found, err := svc.store.HashGet(ctx, store.QueueNameIndex, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFoundf("no queue named %q", name)
	}
	return svc.GetQueue(ctx, queueID)
}

// Authenticate verifies a (queue_name, password) pair against the stored
// hash (§6 "Authentication").
func (svc *Service) Authenticate(ctx context.Context, name, password string) (*Queue, error) {
	q, err := svc.GetQueueByName(ctx, name)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Auth("invalid queue name or password")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(q.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Auth("invalid queue name or password")
	}
	return q, nil
}

// UpdateRequest carries the optional fields an update may change. A nil
// field is left untouched.
type UpdateRequest struct {
	NewName         *string
	NewPassword     *string
	MetadataUpdate  map[string]interface{}
}

// UpdateQueue applies a partial update. MetadataUpdate is a deep-merge
// delta; a null-valued key in the delta deletes that key from the stored
// metadata (§4.8).
func (svc *Service) UpdateQueue(ctx context.Context, queueID string, req *UpdateRequest) (*Queue, error) {
	q, err := svc.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if req.NewName != nil && *req.NewName != q.QueueName {
		if err := validate.Identifier(*req.NewName); err != nil {
			return nil, err
		}
		claimed, err := svc.store.HashSetNX(ctx, store.QueueNameIndex, *req.NewName, queueID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, apperr.QueueExists("a queue named " + *req.NewName + " already exists")
		}
		_ = svc.store.HashDelete(ctx, store.QueueNameIndex, q.QueueName)
		q.QueueName = *req.NewName
	}

	if req.NewPassword != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.StoreFatal("hash password", err)
		}
		q.PasswordHash = string(hash)
	}

	if req.MetadataUpdate != nil {
		if err := validate.Keys(req.MetadataUpdate); err != nil {
			return nil, err
		}
		q.Metadata = mergeMetadataDelete(q.Metadata, req.MetadataUpdate)
	}

	q.LastModified = time.Now().UTC()
	if err := svc.store.Put(ctx, store.CollQueues, q.QueueID, q); err != nil {
		return nil, err
	}
	return q, nil
}

// mergeMetadataDelete deep-merges delta into base, additionally dropping
// any key whose delta value is nil (§4.8 "null-valued keys delete").
func mergeMetadataDelete(base, delta map[string]interface{}) map[string]interface{} {
	merged := task.DeepMerge(base, delta)
	for k, v := range delta {
		if v == nil {
			delete(merged, k)
		}
	}
	return merged
}

// DeleteQueue removes the queue. If cascade is false, it fails with
// QUEUE_NOT_EMPTY when dependent tasks or workers exist; if cascade is
// true, every task/worker/event scoped to queueID is removed in the same
// call (§4.8).
func (svc *Service) DeleteQueue(ctx context.Context, queueID string, cascade bool) error {
	q, err := svc.GetQueue(ctx, queueID)
	if err != nil {
		return err
	}

	if !cascade {
		taskCount, err := svc.store.IndexCard(ctx, store.TaskAllIndex(queueID))
		if err != nil {
			return err
		}
		workerCount, err := svc.store.IndexCard(ctx, store.WorkerAllIndex(queueID))
		if err != nil {
			return err
		}
		if taskCount > 0 || workerCount > 0 {
			return apperr.QueueNotEmpty("queue has dependent tasks or workers; pass cascade_delete=true")
		}
	} else {
		if err := svc.cascadeDeleteChildren(ctx, queueID); err != nil {
			return err
		}
	}

	if err := svc.store.HashDelete(ctx, store.QueueNameIndex, q.QueueName); err != nil {
		return err
	}
	if err := svc.store.IndexRemove(ctx, store.QueueAllIndex, queueID); err != nil {
		return err
	}
	return svc.store.Delete(ctx, store.CollQueues, queueID)
}

func (svc *Service) cascadeDeleteChildren(ctx context.Context, queueID string) error {
	taskIDs, err := svc.store.IndexMembers(ctx, store.TaskAllIndex(queueID))
	if err != nil {
		return err
	}
	for _, id := range taskIDs {
		if err := svc.store.Delete(ctx, store.CollTasks, id); err != nil {
			return err
		}
	}

	workerIDs, err := svc.store.IndexMembers(ctx, store.WorkerAllIndex(queueID))
	if err != nil {
		return err
	}
	for _, id := range workerIDs {
		if err := svc.store.Delete(ctx, store.CollWorkers, id); err != nil {
			return err
		}
	}

	maxSeq, err := svc.store.SeqValue(ctx, store.EventSeqCounter(queueID))
	if err != nil {
		return err
	}
	for seq := int64(1); seq <= maxSeq; seq++ {
		if err := svc.store.Delete(ctx, store.CollEvents, store.EventKey(queueID, seq)); err != nil {
			return err
		}
	}
	if err := svc.store.DeleteCounter(ctx, store.EventSeqCounter(queueID)); err != nil {
		return err
	}

	if err := svc.store.DeleteIndex(ctx, store.TaskAllIndex(queueID)); err != nil {
		return err
	}
	if err := svc.store.DeleteIndex(ctx, store.TaskPendingIndex(queueID)); err != nil {
		return err
	}
	if err := svc.store.DeleteIndex(ctx, store.TaskRunningIndex(queueID)); err != nil {
		return err
	}
	return svc.store.DeleteIndex(ctx, store.WorkerAllIndex(queueID))
}
