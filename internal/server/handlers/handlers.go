// Package handlers implements the HTTP endpoints of the execution service.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/tracelab/opexec/internal/errors"
	"github.com/tracelab/opexec/internal/metrics"
	"github.com/tracelab/opexec/pkg/engine"
	"github.com/tracelab/opexec/pkg/operation"
)

// Handlers holds the endpoint dependencies.
type Handlers struct {
	engine   *engine.Engine
	registry *operation.Registry
}

func New(eng *engine.Engine, registry *operation.Registry) *Handlers {
	return &Handlers{engine: eng, registry: registry}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseRequest decodes, validates and resolves a submission body.
func (h *Handlers) parseRequest(r *http.Request) (*executeRequest, []operation.Operation, error) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, &operation.ValidationError{Index: -1, Message: "malformed request body: " + err.Error()}
	}
	if err := validate.Struct(&req); err != nil {
		return nil, nil, &operation.ValidationError{Index: -1, Message: err.Error()}
	}
	ops, err := req.decode(h.registry)
	if err != nil {
		return nil, nil, err
	}
	return &req, ops, nil
}

// ExecuteSync serves POST /v1/operations/execute. The whole batch runs in one
// transaction over the entity world; results come back in submission order.
func (h *Handlers) ExecuteSync(w http.ResponseWriter, r *http.Request) {
	req, ops, err := h.parseRequest(r)
	if err != nil {
		metrics.ExecutionsSubmitted.WithLabelValues("sync", "rejected").Inc()
		apperrors.RespondWithError(w, r, err)
		return
	}

	results, err := h.engine.ExecuteInOwnUnitOfWork(r.Context(), ops, req.options())
	if err != nil {
		metrics.ExecutionsSubmitted.WithLabelValues("sync", "rejected").Inc()
		apperrors.RespondWithError(w, r, err)
		return
	}
	metrics.ExecutionsSubmitted.WithLabelValues("sync", "accepted").Inc()
	for _, res := range results {
		metrics.OperationsExecuted.WithLabelValues(string(res.Kind)).Inc()
	}
	respondJSON(w, http.StatusOK, executeResponse{Results: results})
}

// ExecuteAsync serves POST /v1/operations/execute-async.
func (h *Handlers) ExecuteAsync(w http.ResponseWriter, r *http.Request) {
	req, ops, err := h.parseRequest(r)
	if err != nil {
		metrics.ExecutionsSubmitted.WithLabelValues("async", "rejected").Inc()
		apperrors.RespondWithError(w, r, err)
		return
	}

	id, err := h.engine.ExecuteAsynchronous(r.Context(), ops, req.options())
	if err != nil {
		metrics.ExecutionsSubmitted.WithLabelValues("async", "rejected").Inc()
		apperrors.RespondWithError(w, r, err)
		return
	}
	metrics.ExecutionsSubmitted.WithLabelValues("async", "accepted").Inc()
	respondJSON(w, http.StatusAccepted, executeAsyncResponse{ExecutionID: id})
}

// ListExecutions serves GET /v1/executions[?owner=].
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.ListExecutions(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Executions: records})
}

// GetExecution serves GET /v1/executions/{id}.
func (h *Handlers) GetExecution(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Health serves GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
