package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/loomwork/loom/internal/workflow"
)

// mockStore implements workflow.Store for handler tests.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateWorkflow(ctx context.Context, input workflow.CreateWorkflowInput) (*workflow.Workflow, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Workflow), args.Error(1)
}

func (m *mockStore) UpdateWorkflow(ctx context.Context, id string, input workflow.UpdateWorkflowInput) (*workflow.Workflow, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Workflow), args.Error(1)
}

func (m *mockStore) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]workflow.Workflow), args.Error(1)
}

func (m *mockStore) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Workflow), args.Error(1)
}

func (m *mockStore) CreateExecution(ctx context.Context, workflowID string) (*workflow.Execution, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Execution), args.Error(1)
}

func (m *mockStore) ClaimNextPending(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockStore) TransitionExecution(ctx context.Context, id string, status workflow.ExecutionStatus, errMsg *string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *mockStore) GetLatestExecution(ctx context.Context, workflowID string) (*workflow.Execution, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Execution), args.Error(1)
}

func (m *mockStore) GetExecutionWithSteps(ctx context.Context, id string) (*workflow.ExecutionWithSteps, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ExecutionWithSteps), args.Error(1)
}

func (m *mockStore) GetExecutionWithWorkflow(ctx context.Context, id string) (*workflow.ExecutionWithWorkflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ExecutionWithWorkflow), args.Error(1)
}

func (m *mockStore) CreateStep(ctx context.Context, executionID, nodeID string) (*workflow.ExecutionStep, error) {
	args := m.Called(ctx, executionID, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ExecutionStep), args.Error(1)
}

func (m *mockStore) StepToRunning(ctx context.Context, stepID string) error {
	args := m.Called(ctx, stepID)
	return args.Error(0)
}

func (m *mockStore) StepToCompleted(ctx context.Context, stepID string, result json.RawMessage) error {
	args := m.Called(ctx, stepID, result)
	return args.Error(0)
}

func (m *mockStore) StepToFailed(ctx context.Context, stepID string, errMsg string) error {
	args := m.Called(ctx, stepID, errMsg)
	return args.Error(0)
}

func (m *mockStore) MarkStuckRunningAsFailed(ctx context.Context, reason string) (int64, error) {
	args := m.Called(ctx, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CountPendingExecutions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestWorkflowHandler_List(t *testing.T) {
	store := new(mockStore)
	store.On("ListWorkflows", mock.Anything).Return([]workflow.Workflow{{ID: "w1", Name: "demo"}}, nil)
	h := NewWorkflowHandler(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got []workflow.Workflow
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 1)
	assert.Equal(t, "demo", got[0].Name)
}

func TestWorkflowHandler_Create_ValidationError(t *testing.T) {
	store := new(mockStore)
	h := NewWorkflowHandler(store, nil)

	body := bytes.NewBufferString(`{"name": ""}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows", body)
	w := httptest.NewRecorder()
	h.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "CreateWorkflow", mock.Anything, mock.Anything)
}

func TestWorkflowHandler_Create_Success(t *testing.T) {
	store := new(mockStore)
	created := &workflow.Workflow{ID: "w1", Name: "demo"}
	store.On("CreateWorkflow", mock.Anything, mock.Anything).Return(created, nil)
	h := NewWorkflowHandler(store, nil)

	body := bytes.NewBufferString(`{"name": "demo", "nodes": [], "edges": []}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows", body)
	w := httptest.NewRecorder()
	h.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	store.AssertExpectations(t)
}

func TestWorkflowHandler_Delete_NotFound(t *testing.T) {
	store := new(mockStore)
	store.On("DeleteWorkflow", mock.Anything, "missing").Return(workflow.ErrNotFound)
	h := NewWorkflowHandler(store, nil)

	req := httptest.NewRequest(http.MethodDelete, "/workflows?id=missing", nil)
	w := httptest.NewRecorder()
	h.Delete(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecutionHandler_Create_EnqueuesPending(t *testing.T) {
	store := new(mockStore)
	store.On("CreateExecution", mock.Anything, "w1").Return(&workflow.Execution{ID: "e1", WorkflowID: "w1", Status: workflow.ExecutionStatusPending}, nil)
	h := NewExecutionHandler(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewBufferString(`{"workflowId": "w1"}`))
	w := httptest.NewRecorder()
	h.Create(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var got map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "e1", got["executionId"])
	assert.Equal(t, "queued", got["status"])
}

func TestExecutionHandler_Create_MissingWorkflowID(t *testing.T) {
	store := new(mockStore)
	h := NewExecutionHandler(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	h.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "CreateExecution", mock.Anything, mock.Anything)
}

func TestExecutionHandler_Enqueue(t *testing.T) {
	store := new(mockStore)
	store.On("GetWorkflow", mock.Anything, "w1").Return(&workflow.Workflow{ID: "w1"}, nil)
	store.On("CreateExecution", mock.Anything, "w1").Return(&workflow.Execution{ID: "e1", WorkflowID: "w1", Status: workflow.ExecutionStatusPending}, nil)
	h := NewExecutionHandler(store, nil)

	r := chi.NewRouter()
	r.Post("/workflows/{id}/execute", h.Enqueue)

	req := httptest.NewRequest(http.MethodPost, "/workflows/w1/execute", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var got map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "e1", got["executionId"])
}

func TestExecutionHandler_Get_Status(t *testing.T) {
	store := new(mockStore)
	store.On("GetExecutionWithSteps", mock.Anything, "e1").Return(&workflow.ExecutionWithSteps{
		Execution: workflow.Execution{ID: "e1", Status: workflow.ExecutionStatusRunning},
	}, nil)
	h := NewExecutionHandler(store, nil)

	r := chi.NewRouter()
	r.Get("/executions/{id}/status", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/executions/e1/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got workflow.ExecutionWithSteps
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, workflow.ExecutionStatusRunning, got.Status)
}

func TestExecutionHandler_GetLatestByWorkflow_NullWhenAbsent(t *testing.T) {
	store := new(mockStore)
	store.On("GetLatestExecution", mock.Anything, "w1").Return(nil, workflow.ErrNotFound)
	h := NewExecutionHandler(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/executions?workflowId=w1&latest=true", nil)
	w := httptest.NewRecorder()
	h.GetLatestByWorkflow(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
}
