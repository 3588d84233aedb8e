// Package handlers implements the wire API's HTTP handlers (§6): thin
// adapters that decode a request, call into the core (tenant/dispatch/
// report/reaper/events), and map the result or error back onto JSON,
// generalized from the teacher's respondJSON/respondError pair into a
// single error-mapper keyed by apperr.Kind instead of ad hoc status codes.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/maumercado/task-queue-go/internal/apperr"
	apimiddleware "github.com/maumercado/task-queue-go/internal/api/middleware"
	"github.com/maumercado/task-queue-go/internal/logger"
)

// respondJSON writes data as a JSON body with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorBody is the uniform error envelope every failing response carries
// (§6 "error bodies carry {detail: string}").
type errorBody struct {
	Detail string `json:"detail"`
}

// listResponse wraps a paginated collection with the total number of
// matches before offset/limit, so
// a caller can tell offset/limit apart from "no more results" (§6 list
// routes).
type listResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

// respondError maps err onto a {detail} body and the HTTP status §7
// assigns its apperr.Kind. Anything that did not originate as an
// *apperr.Error is treated as unexpected and surfaces as 500.
func respondError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apimiddleware.KindToStatus(kind)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("unexpected error serving request")
	}
	respondJSON(w, status, errorBody{Detail: err.Error()})
}

// decodeJSON decodes r's body into dst, responding with a VALIDATION error
// and returning false on failure so the caller can return early.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		respondError(w, apperr.Validation("request body is required"))
		return false
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		respondError(w, apperr.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}
