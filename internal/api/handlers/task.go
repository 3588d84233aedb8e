package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maumercado/task-queue-go/internal/apperr"
	apimiddleware "github.com/maumercado/task-queue-go/internal/api/middleware"
	"github.com/maumercado/task-queue-go/internal/dispatch"
	"github.com/maumercado/task-queue-go/internal/report"
	"github.com/maumercado/task-queue-go/internal/task"
)

// TaskHandler serves the §6 task routes: submit, list, get, delete/cancel,
// fetch, status report, heartbeat.
type TaskHandler struct {
	tasks      *task.Service
	dispatcher *dispatch.Dispatcher
	reporter   *report.Reporter
	heartbeat  float64
}

func NewTaskHandler(tasks *task.Service, d *dispatch.Dispatcher, r *report.Reporter, heartbeatIntervalSeconds float64) *TaskHandler {
	return &TaskHandler{tasks: tasks, dispatcher: d, reporter: r, heartbeat: heartbeatIntervalSeconds}
}

type submitTaskResponse struct {
	TaskID string `json:"task_id"`
}

// Submit handles POST /api/v1/queues/me/tasks.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())

	var req task.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.tasks.Submit(r.Context(), q.QueueID, &req, h.heartbeat)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, submitTaskResponse{TaskID: t.TaskID})
}

// List handles GET /api/v1/queues/me/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())

	opts, err := parseListOptions(r)
	if err != nil {
		respondError(w, err)
		return
	}

	tasks, total, err := h.tasks.List(r.Context(), q.QueueID, opts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Items: tasks, Total: total})
}

func parseListOptions(r *http.Request) (*task.ListOptions, error) {
	query := r.URL.Query()
	opts := &task.ListOptions{
		TaskID:   query.Get("task_id"),
		TaskName: query.Get("task_name"),
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperr.Validationf("invalid offset: %v", err)
		}
		opts.Offset = offset
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperr.Validationf("invalid limit: %v", err)
		}
		opts.Limit = limit
	}
	if v := query.Get("extra_filter"); v != "" {
		var filter map[string]interface{}
		if err := json.Unmarshal([]byte(v), &filter); err != nil {
			return nil, apperr.Validationf("invalid extra_filter: %v", err)
		}
		opts.ExtraFilter = filter
	}
	return opts, nil
}

// Get handles GET /api/v1/queues/me/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	t, err := h.tasks.Get(r.Context(), q.QueueID, taskID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/v1/queues/me/tasks/{id}: cancels a PENDING
// task through the FSM (§4.2) so the deletion is itself an observable
// transition with an event, rather than a silent record removal.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	if _, err := h.reporter.CancelTask(r.Context(), q.QueueID, taskID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type fetchRequest struct {
	WorkerID       string                 `json:"worker_id,omitempty"`
	StartHeartbeat bool                   `json:"start_heartbeat,omitempty"`
	RequiredFields []string               `json:"required_fields,omitempty"`
	ExtraFilter    map[string]interface{} `json:"extra_filter,omitempty"`
}

type fetchResponse struct {
	Found bool       `json:"found"`
	Task  *task.Task `json:"task,omitempty"`
}

// Next handles POST /api/v1/queues/me/tasks/next.
func (h *TaskHandler) Next(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())

	var req fetchRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	result, err := h.dispatcher.Fetch(r.Context(), &dispatch.FetchRequest{
		QueueID:        q.QueueID,
		WorkerID:       req.WorkerID,
		StartHeartbeat: req.StartHeartbeat,
		RequiredFields: req.RequiredFields,
		ExtraFilter:    req.ExtraFilter,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fetchResponse{Found: result.Found, Task: result.Task})
}

type reportStatusRequest struct {
	Status        task.ReportableStatus  `json:"status"`
	SummaryUpdate map[string]interface{} `json:"summary_update,omitempty"`
}

// Status handles POST /api/v1/queues/me/tasks/{id}/status.
func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var req reportStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.reporter.ReportStatus(r.Context(), q.QueueID, taskID, req.Status, req.SummaryUpdate)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

type heartbeatResponse struct {
	OK bool `json:"ok"`
}

// Heartbeat handles POST /api/v1/queues/me/tasks/{id}/heartbeat.
func (h *TaskHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	ok, err := h.reporter.RefreshHeartbeat(r.Context(), q.QueueID, taskID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, heartbeatResponse{OK: ok})
}
