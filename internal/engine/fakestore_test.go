package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/loomwork/loom/internal/workflow"
)

// fakeStore is an in-memory workflow.Store double used to exercise the
// Engine's full Execute path without a database, grounded on the same
// operations the Postgres-backed store implements.
type fakeStore struct {
	mu         sync.Mutex
	workflows  map[string]*workflow.Workflow
	executions map[string]*workflow.Execution
	steps      map[string][]*workflow.ExecutionStep
	seq        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workflows:  map[string]*workflow.Workflow{},
		executions: map[string]*workflow.Execution{},
		steps:      map[string][]*workflow.ExecutionStep{},
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + time.Now().Format("150405.000000000") + "-" + string(rune('a'+s.seq%26))
}

func (s *fakeStore) addWorkflow(id string, def workflow.Definition) {
	nodes, _ := json.Marshal(def.Nodes)
	edges, _ := json.Marshal(def.Edges)
	s.workflows[id] = &workflow.Workflow{
		ID:     id,
		Name:   "test",
		Nodes:  workflow.JSONColumn(nodes),
		Edges:  workflow.JSONColumn(edges),
		Status: workflow.WorkflowStatusActive,
	}
}

func (s *fakeStore) addExecution(id, workflowID string) {
	s.executions[id] = &workflow.Execution{ID: id, WorkflowID: workflowID, Status: workflow.ExecutionStatusPending, CreatedAt: time.Now()}
}

func (s *fakeStore) CreateWorkflow(ctx context.Context, input workflow.CreateWorkflowInput) (*workflow.Workflow, error) {
	panic("not used")
}
func (s *fakeStore) UpdateWorkflow(ctx context.Context, id string, input workflow.UpdateWorkflowInput) (*workflow.Workflow, error) {
	panic("not used")
}
func (s *fakeStore) DeleteWorkflow(ctx context.Context, id string) error { panic("not used") }
func (s *fakeStore) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	panic("not used")
}
func (s *fakeStore) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	panic("not used")
}
func (s *fakeStore) CreateExecution(ctx context.Context, workflowID string) (*workflow.Execution, error) {
	panic("not used")
}
func (s *fakeStore) ClaimNextPending(ctx context.Context) (string, error) { panic("not used") }

func (s *fakeStore) TransitionExecution(ctx context.Context, id string, status workflow.ExecutionStatus, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.executions[id]
	e.Status = status
	if errMsg != nil {
		e.ErrorMessage = errMsg
	}
	return nil
}

func (s *fakeStore) GetLatestExecution(ctx context.Context, workflowID string) (*workflow.Execution, error) {
	panic("not used")
}

func (s *fakeStore) GetExecutionWithSteps(ctx context.Context, id string) (*workflow.ExecutionWithSteps, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.executions[id]
	var steps []workflow.ExecutionStep
	for _, st := range s.steps[id] {
		steps = append(steps, *st)
	}
	return &workflow.ExecutionWithSteps{Execution: *e, Steps: steps}, nil
}

func (s *fakeStore) GetExecutionWithWorkflow(ctx context.Context, id string) (*workflow.ExecutionWithWorkflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	w := s.workflows[e.WorkflowID]
	def, err := w.Graph()
	if err != nil {
		return nil, err
	}
	return &workflow.ExecutionWithWorkflow{Execution: *e, WorkflowName: w.Name, Definition: def}, nil
}

func (s *fakeStore) CreateStep(ctx context.Context, executionID, nodeID string) (*workflow.ExecutionStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := &workflow.ExecutionStep{
		ID:          s.nextID("step"),
		ExecutionID: executionID,
		NodeID:      nodeID,
		Status:      workflow.StepStatusPending,
		CreatedAt:   time.Now(),
	}
	s.steps[executionID] = append(s.steps[executionID], step)
	return step, nil
}

func (s *fakeStore) findStep(stepID string) *workflow.ExecutionStep {
	for _, list := range s.steps {
		for _, st := range list {
			if st.ID == stepID {
				return st
			}
		}
	}
	return nil
}

func (s *fakeStore) StepToRunning(ctx context.Context, stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findStep(stepID).Status = workflow.StepStatusRunning
	return nil
}

func (s *fakeStore) StepToCompleted(ctx context.Context, stepID string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.findStep(stepID)
	st.Status = workflow.StepStatusCompleted
	st.Result = workflow.JSONColumn(result)
	return nil
}

func (s *fakeStore) StepToFailed(ctx context.Context, stepID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.findStep(stepID)
	st.Status = workflow.StepStatusFailed
	st.ErrorMessage = &errMsg
	return nil
}

func (s *fakeStore) MarkStuckRunningAsFailed(ctx context.Context, reason string) (int64, error) {
	panic("not used")
}

func (s *fakeStore) CountPendingExecutions(ctx context.Context) (int64, error) {
	panic("not used")
}
