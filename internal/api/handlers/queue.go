package handlers

import (
	"net/http"
	"strconv"

	apimiddleware "github.com/maumercado/task-queue-go/internal/api/middleware"
	"github.com/maumercado/task-queue-go/internal/tenant"
)

// QueueHandler serves the §6 queue lifecycle routes.
type QueueHandler struct {
	svc *tenant.Service
}

func NewQueueHandler(svc *tenant.Service) *QueueHandler {
	return &QueueHandler{svc: svc}
}

type createQueueRequest struct {
	QueueName string                 `json:"queue_name"`
	Password  string                 `json:"password"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Create handles POST /api/v1/queues.
func (h *QueueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := h.svc.CreateQueue(r.Context(), req.QueueName, req.Password, req.Metadata)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

// Get handles GET /api/v1/queues/me.
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())
	respondJSON(w, http.StatusOK, q)
}

type updateQueueRequest struct {
	QueueName      *string                `json:"queue_name,omitempty"`
	Password       *string                `json:"password,omitempty"`
	MetadataUpdate map[string]interface{} `json:"metadata_update,omitempty"`
}

// Update handles PUT /api/v1/queues/me.
func (h *QueueHandler) Update(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())

	var req updateQueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.svc.UpdateQueue(r.Context(), q.QueueID, &tenant.UpdateRequest{
		NewName:        req.QueueName,
		NewPassword:    req.Password,
		MetadataUpdate: req.MetadataUpdate,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/queues/me?cascade_delete=bool.
func (h *QueueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())

	cascade, _ := strconv.ParseBool(r.URL.Query().Get("cascade_delete"))
	if err := h.svc.DeleteQueue(r.Context(), q.QueueID, cascade); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
