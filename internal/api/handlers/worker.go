package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maumercado/task-queue-go/internal/apperr"
	apimiddleware "github.com/maumercado/task-queue-go/internal/api/middleware"
	"github.com/maumercado/task-queue-go/internal/report"
	"github.com/maumercado/task-queue-go/internal/worker"
)

// WorkerHandler serves the §6 worker routes, mirroring TaskHandler's CRUD
// shape plus the supplemented admin reset (SPEC_FULL.md).
type WorkerHandler struct {
	workers  *worker.Service
	reporter *report.Reporter
}

func NewWorkerHandler(w *worker.Service, r *report.Reporter) *WorkerHandler {
	return &WorkerHandler{workers: w, reporter: r}
}

// Register handles POST /api/v1/queues/me/workers.
func (h *WorkerHandler) Register(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())

	var req worker.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	registered, err := h.workers.Register(r.Context(), q.QueueID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, registered)
}

// List handles GET /api/v1/queues/me/workers.
func (h *WorkerHandler) List(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())

	offset, limit, err := parseOffsetLimit(r)
	if err != nil {
		respondError(w, err)
		return
	}

	workers, total, err := h.workers.List(r.Context(), q.QueueID, offset, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Items: workers, Total: total})
}

func parseOffsetLimit(r *http.Request) (offset, limit int, err error) {
	query := r.URL.Query()
	if v := query.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, apperr.Validationf("invalid offset: %v", err)
		}
	}
	if v := query.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, apperr.Validationf("invalid limit: %v", err)
		}
	}
	return offset, limit, nil
}

// Get handles GET /api/v1/queues/me/workers/{id}.
func (h *WorkerHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	workerID := chi.URLParam(r, "workerID")

	rec, err := h.workers.Get(r.Context(), q.QueueID, workerID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/queues/me/workers/{id}.
func (h *WorkerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	workerID := chi.URLParam(r, "workerID")

	if err := h.workers.Delete(r.Context(), q.QueueID, workerID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Reset handles the admin route bringing a CRASHED/FAILED worker
// back to ACTIVE (SPEC_FULL.md "Admin worker reset"). Equivalent to
// POSTing {"status":"active"} to the status route below.
func (h *WorkerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	workerID := chi.URLParam(r, "workerID")

	rec, err := h.reporter.ResetWorker(r.Context(), q.QueueID, workerID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type updateWorkerStatusRequest struct {
	Status worker.AdminStatus `json:"status"`
}

// Status handles POST /api/v1/queues/me/workers/{id}/status (§4.6), the
// admin-driven ACTIVE<->SUSPENDED/FAILED transitions and, via
// status=="active", the CRASHED/FAILED reset.
func (h *WorkerHandler) Status(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	workerID := chi.URLParam(r, "workerID")

	var req updateWorkerStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.reporter.UpdateWorkerStatus(r.Context(), q.QueueID, workerID, req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
