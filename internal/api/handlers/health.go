package handlers

import (
	"net/http"

	"github.com/maumercado/task-queue-go/internal/store"
)

// HealthHandler serves the §6 liveness/readiness routes, grounded on the
// teacher's middleware.Heartbeat("/health") plus AdminHandler.HealthCheck's
// Redis ping, split into two endpoints instead of one.
type HealthHandler struct {
	store *store.Store
}

func NewHealthHandler(s *store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Live handles GET /health: process liveness, no store round-trip.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Full handles GET /health/full: readiness including a store PING.
func (h *HealthHandler) Full(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "store unreachable"})
		return
	}
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
