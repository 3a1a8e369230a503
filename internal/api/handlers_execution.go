package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loomwork/loom/internal/workflow"
)

// ExecutionHandler serves the execution enqueue/inspection surface.
// It never runs a workflow itself — enqueueing only inserts a pending
// row; the Queue Processor picks it up.
type ExecutionHandler struct {
	store  workflow.Store
	logger *slog.Logger
}

// NewExecutionHandler wires an ExecutionHandler to an explicit Store.
func NewExecutionHandler(store workflow.Store, logger *slog.Logger) *ExecutionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionHandler{store: store, logger: logger}
}

type createExecutionRequest struct {
	WorkflowID string `json:"workflowId"`
}

// Create handles POST /executions {workflowId}, enqueueing a pending
// execution for the Queue Processor to claim.
func (h *ExecutionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createExecutionRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.WorkflowID == "" {
		respondError(w, h.logger, http.StatusBadRequest, "workflowId is required")
		return
	}

	execution, err := h.store.CreateExecution(r.Context(), body.WorkflowID)
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusAccepted, map[string]interface{}{
		"executionId": execution.ID,
		"status":      "queued",
	})
}

// Enqueue handles POST /workflows/{id}/execute, the per-workflow
// convenience route equivalent to Create.
func (h *ExecutionHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "id")
	if _, err := h.store.GetWorkflow(r.Context(), workflowID); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "workflow not found")
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}

	execution, err := h.store.CreateExecution(r.Context(), workflowID)
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusAccepted, map[string]interface{}{
		"executionId": execution.ID,
	})
}

// Get handles GET /executions?executionId=... and GET
// /executions/{id}/status, both returning the detailed execution
// plus its steps.
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("executionId")
	}
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "executionId is required")
		return
	}
	execution, err := h.store.GetExecutionWithSteps(r.Context(), id)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "execution not found")
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusOK, execution)
}

// GetLatestByWorkflow handles GET /executions?workflowId=...&latest=true
// and GET /workflows/{id}/executions/latest. Absence of any execution
// is not an error: it resolves to a null body, not 404.
func (h *ExecutionHandler) GetLatestByWorkflow(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "id")
	if workflowID == "" {
		workflowID = r.URL.Query().Get("workflowId")
	}
	if workflowID == "" {
		respondError(w, h.logger, http.StatusBadRequest, "workflowId is required")
		return
	}

	execution, err := h.store.GetLatestExecution(r.Context(), workflowID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("null"))
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusOK, execution)
}
