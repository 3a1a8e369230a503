package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/loomwork/loom/internal/workflow"
)

// WorkflowHandler serves the workflow CRUD surface.
type WorkflowHandler struct {
	store    workflow.Store
	validate *validator.Validate
	logger   *slog.Logger
}

// NewWorkflowHandler wires a WorkflowHandler to an explicit Store.
func NewWorkflowHandler(store workflow.Store, logger *slog.Logger) *WorkflowHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowHandler{store: store, validate: validator.New(), logger: logger}
}

// List handles GET /workflows.
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.store.ListWorkflows(r.Context())
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusOK, workflows)
}

// Create handles POST /workflows.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input workflow.CreateWorkflowInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.store.CreateWorkflow(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, created)
}

// Update handles PUT /workflows/{id}.
func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input workflow.UpdateWorkflowInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.store.UpdateWorkflow(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "workflow not found")
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusOK, updated)
}

// Delete handles DELETE /workflows?id=....
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "id is required")
		return
	}
	if err := h.store.DeleteWorkflow(r.Context(), id); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "workflow not found")
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, h.logger, http.StatusNoContent, nil)
}
