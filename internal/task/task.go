// Package task implements the task finite-state machine and record shape:
// the authoritative definition of what a task is and which transitions are
// legal, generalized from the teacher's stream-oriented Task/State pair.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Status is one of the five task lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether s is absorbing: SUCCESS, FAILED, CANCELLED.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// DefaultPriority is the priority assigned when a submitter omits one.
const DefaultPriority = 5

// DefaultMaxRetries is the retry budget assigned when a submitter omits one.
const DefaultMaxRetries = 3

// DefaultHeartbeatTimeoutMultiplier is applied to the queue's configured
// heartbeat interval when a task does not set its own heartbeat_timeout.
const DefaultHeartbeatTimeoutMultiplier = 3

// Task is the persisted record for one unit of work.
type Task struct {
	TaskID           string                 `json:"task_id"`
	QueueID          string                 `json:"queue_id"`
	TaskName         string                 `json:"task_name,omitempty"`
	Status           Status                 `json:"status"`
	CreatedAt        time.Time              `json:"created_at"`
	StartTime        *time.Time             `json:"start_time,omitempty"`
	LastHeartbeat    *time.Time             `json:"last_heartbeat,omitempty"`
	LastModified     time.Time              `json:"last_modified"`
	HeartbeatTimeout float64                `json:"heartbeat_timeout"`
	TaskTimeout      *int                   `json:"task_timeout,omitempty"`
	MaxRetries       int                    `json:"max_retries"`
	Retries          int                    `json:"retries"`
	Priority         int                    `json:"priority"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	Args             map[string]interface{} `json:"args,omitempty"`
	Cmd              interface{}            `json:"cmd,omitempty"`
	Summary          map[string]interface{} `json:"summary,omitempty"`
	WorkerID         string                 `json:"worker_id,omitempty"`
}

// SubmitRequest is the document a submitter POSTs to create a task.
type SubmitRequest struct {
	TaskName         string                 `json:"task_name,omitempty"`
	HeartbeatTimeout float64                `json:"heartbeat_timeout,omitempty"`
	TaskTimeout      *int                   `json:"task_timeout,omitempty"`
	MaxRetries       *int                   `json:"max_retries,omitempty"`
	Priority         *int                   `json:"priority,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	Args             map[string]interface{} `json:"args,omitempty"`
	Cmd              interface{}            `json:"cmd,omitempty"`
}

// New builds a PENDING task from a submit request, filling in every default
// from §3. heartbeatIntervalSeconds is the queue's configured reaper
// interval, used to derive the default heartbeat_timeout.
func New(queueID string, req *SubmitRequest, heartbeatIntervalSeconds float64) *Task {
	now := time.Now().UTC()

	maxRetries := DefaultMaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	priority := DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	heartbeatTimeout := req.HeartbeatTimeout
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = heartbeatIntervalSeconds * DefaultHeartbeatTimeoutMultiplier
	}

	return &Task{
		TaskID:           uuid.New().String(),
		QueueID:          queueID,
		TaskName:         req.TaskName,
		Status:           StatusPending,
		CreatedAt:        now,
		LastModified:     now,
		HeartbeatTimeout: heartbeatTimeout,
		TaskTimeout:      req.TaskTimeout,
		MaxRetries:       maxRetries,
		Retries:          0,
		Priority:         priority,
		Metadata:         req.Metadata,
		Args:             req.Args,
		Cmd:              req.Cmd,
		Summary:          map[string]interface{}{},
	}
}

// DispatchScore is the sorted-set score used for the pending-task index:
// priority DESC, created_at ASC. A large constant separates priority bands
// so that the millisecond timestamp never crosses into the next band.
const priorityBand = 1e13

func (t *Task) DispatchScore() float64 {
	return -float64(t.Priority)*priorityBand + float64(t.CreatedAt.UnixMilli())
}
