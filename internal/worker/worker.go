// Package worker implements the worker finite-state machine and record
// shape (§4.6), generalized from the teacher's ephemeral heartbeat registry
// into a persisted, queue-scoped entity.
package worker

import (
	"time"

	"github.com/google/uuid"

	"github.com/maumercado/task-queue-go/internal/apperr"
)

// Status is one of the four worker lifecycle states.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusFailed    Status = "FAILED"
	StatusCrashed   Status = "CRASHED"
)

// DefaultMaxRetries is the consecutive-failure budget before a worker is
// auto-suspended into CRASHED (§3).
const DefaultMaxRetries = 3

// Worker is the persisted record for one registered executor identity.
type Worker struct {
	WorkerID     string                 `json:"worker_id"`
	QueueID      string                 `json:"queue_id"`
	WorkerName   string                 `json:"worker_name,omitempty"`
	Status       Status                 `json:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Retries      int                    `json:"retries"`
	MaxRetries   int                    `json:"max_retries"`
	CreatedAt    time.Time              `json:"created_at"`
	LastModified time.Time              `json:"last_modified"`
}

// RegisterRequest is the document a worker POSTs to register itself.
type RegisterRequest struct {
	WorkerName string                 `json:"worker_name,omitempty"`
	MaxRetries *int                   `json:"max_retries,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// New builds an ACTIVE worker record from a registration request.
func New(queueID string, req *RegisterRequest) *Worker {
	now := time.Now().UTC()

	maxRetries := DefaultMaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	return &Worker{
		WorkerID:     uuid.New().String(),
		QueueID:      queueID,
		WorkerName:   req.WorkerName,
		Status:       StatusActive,
		Metadata:     req.Metadata,
		Retries:      0,
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		LastModified: now,
	}
}

// IsAvailable reports whether the worker may be bound to a fetch (§4.3).
func (w *Worker) IsAvailable() bool {
	return w.Status == StatusActive
}

// RecordFailure increments the consecutive-failure counter and, if the
// budget is exhausted, auto-suspends the worker into CRASHED (§4.4 step 3).
// Returns true if this call transitioned the worker to CRASHED.
func (w *Worker) RecordFailure() (crashed bool) {
	w.Retries++
	w.LastModified = time.Now().UTC()
	if w.Retries >= w.MaxRetries && w.Status == StatusActive {
		w.Status = StatusCrashed
		return true
	}
	return false
}

// Suspend is an admin-driven ACTIVE -> SUSPENDED transition.
func (w *Worker) Suspend() error {
	if w.Status != StatusActive {
		return apperr.InvalidStateTransition("only an ACTIVE worker may be suspended")
	}
	w.Status = StatusSuspended
	w.LastModified = time.Now().UTC()
	return nil
}

// MarkFailed is an admin-driven transition to FAILED from any other state
// (ACTIVE, SUSPENDED or CRASHED).
func (w *Worker) MarkFailed() error {
	if w.Status == StatusFailed {
		return apperr.InvalidStateTransition("worker is already FAILED")
	}
	w.Status = StatusFailed
	w.LastModified = time.Now().UTC()
	return nil
}

// Reset is the admin-driven recovery transition from CRASHED/FAILED back to
// ACTIVE (§3 "unless an explicit admin reset occurs", generalized to
// workers; supplemented feature, see SPEC_FULL.md).
func (w *Worker) Reset() error {
	if w.Status != StatusCrashed && w.Status != StatusFailed {
		return apperr.InvalidStateTransition("only a CRASHED or FAILED worker may be reset")
	}
	w.Status = StatusActive
	w.Retries = 0
	w.LastModified = time.Now().UTC()
	return nil
}

// AdminStatus is the set of target states an admin status update (§4.6) may
// request, mirroring labtasker's WorkerStatusUpdateRequest.
type AdminStatus string

const (
	AdminActive    AdminStatus = "active"
	AdminSuspended AdminStatus = "suspended"
	AdminFailed    AdminStatus = "failed"
)

// ApplyAdminStatus drives the worker to the requested admin status,
// dispatching to whichever §4.6 transition applies: target "active" resets
// a CRASHED/FAILED worker (or is a no-op on an already-ACTIVE one), target
// "suspended" applies Suspend, target "failed" applies MarkFailed.
func (w *Worker) ApplyAdminStatus(target AdminStatus) error {
	switch target {
	case AdminActive:
		if w.Status == StatusActive {
			return nil
		}
		return w.Reset()
	case AdminSuspended:
		return w.Suspend()
	case AdminFailed:
		return w.MarkFailed()
	default:
		return apperr.Validationf("invalid worker status %q", target)
	}
}
