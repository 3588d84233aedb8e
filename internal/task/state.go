package task

import (
	"time"

	"github.com/maumercado/task-queue-go/internal/apperr"
)

// TimeoutReason distinguishes the two reaper-driven failure paths (§4.4).
type TimeoutReason string

const (
	TimeoutHeartbeat TimeoutReason = "TIMEOUT_HEARTBEAT"
	TimeoutTask      TimeoutReason = "TIMEOUT_TASK"
)

// EnterRunning applies the PENDING --fetch--> RUNNING entry effects (§4.2)
// and binds the task to workerID. Callers must have already verified the
// task was PENDING before calling this.
func (t *Task) EnterRunning(workerID string) {
	now := time.Now().UTC()
	t.Status = StatusRunning
	t.WorkerID = workerID
	if t.StartTime == nil {
		t.StartTime = &now
	}
	t.LastHeartbeat = &now
	t.LastModified = now
}

// Requeue applies the RUNNING --x--> PENDING entry effects: increments
// retries, clears worker_id and last_heartbeat, keeps start_time.
func (t *Task) Requeue() {
	now := time.Now().UTC()
	t.Status = StatusPending
	t.Retries++
	t.WorkerID = ""
	t.LastHeartbeat = nil
	t.LastModified = now
}

// EnterTerminal applies the RUNNING --x--> {SUCCESS,FAILED,CANCELLED}
// entry effects: clears worker_id and deep-merges summaryUpdate into
// summary (§4.2, §4.10).
func (t *Task) EnterTerminal(status Status, summaryUpdate map[string]interface{}) {
	t.Status = status
	t.WorkerID = ""
	t.Summary = DeepMerge(t.Summary, summaryUpdate)
	t.LastModified = time.Now().UTC()
}

// CanRequeue reports whether one more attempt fits the retry budget.
func (t *Task) CanRequeue() bool {
	return t.Retries+1 <= t.MaxRetries
}

// RefreshHeartbeat sets last_heartbeat = now, only if RUNNING. Returns false
// if the task is not RUNNING (no-op, no error — §4.5).
func (t *Task) RefreshHeartbeat() bool {
	if t.Status != StatusRunning {
		return false
	}
	now := time.Now().UTC()
	t.LastHeartbeat = &now
	t.LastModified = now
	return true
}

// ReportableStatus is the set of statuses a worker may report (§4.5).
type ReportableStatus string

const (
	ReportSuccess   ReportableStatus = "success"
	ReportFailed    ReportableStatus = "failed"
	ReportCancelled ReportableStatus = "cancelled"
)

// ApplyReport computes the task's next status for a worker-submitted
// terminal report, rejecting anything but a RUNNING task (§4.5). It does
// not mutate t; callers apply the resulting status via EnterTerminal or
// Requeue after deciding side effects (worker retry bookkeeping).
func (t *Task) ApplyReport(status ReportableStatus) (next Status, isRequeue bool, err error) {
	if t.Status.IsTerminal() {
		return "", false, apperr.InvalidStateTransition("task is already in a terminal state")
	}
	if t.Status != StatusRunning {
		return "", false, apperr.InvalidStateTransition("task must be RUNNING to report a status")
	}

	switch status {
	case ReportSuccess:
		return StatusSuccess, false, nil
	case ReportCancelled:
		return StatusCancelled, false, nil
	case ReportFailed:
		if t.CanRequeue() {
			return StatusPending, true, nil
		}
		return StatusFailed, false, nil
	default:
		return "", false, apperr.Validationf("unknown report status %q", status)
	}
}

// ApplyTimeout computes the task's next status for a reaper-driven timeout
// (§4.4). A task-timeout is unconditional FAILED; a heartbeat-timeout
// requeues if the retry budget allows.
func (t *Task) ApplyTimeout(reason TimeoutReason) (next Status, isRequeue bool) {
	if reason == TimeoutTask {
		return StatusFailed, false
	}
	if t.CanRequeue() {
		return StatusPending, true
	}
	return StatusFailed, false
}

// Cancel applies the PENDING --cancel--> CANCELLED transition.
func (t *Task) Cancel() error {
	if t.Status != StatusPending {
		return apperr.InvalidStateTransition("only a PENDING task may be cancelled directly")
	}
	t.EnterTerminal(StatusCancelled, nil)
	return nil
}

// HeartbeatExpired reports whether a RUNNING task's heartbeat deadline has
// passed as of now.
func (t *Task) HeartbeatExpired(now time.Time) bool {
	if t.Status != StatusRunning || t.LastHeartbeat == nil {
		return false
	}
	deadline := t.LastHeartbeat.Add(time.Duration(t.HeartbeatTimeout * float64(time.Second)))
	return deadline.Before(now)
}

// TaskTimeoutExpired reports whether a RUNNING task's wall-clock cap has
// passed as of now. Returns false if no task_timeout is configured.
func (t *Task) TaskTimeoutExpired(now time.Time) bool {
	if t.Status != StatusRunning || t.TaskTimeout == nil || t.StartTime == nil {
		return false
	}
	deadline := t.StartTime.Add(time.Duration(*t.TaskTimeout) * time.Second)
	return deadline.Before(now)
}
