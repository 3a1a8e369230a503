package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is the persistence contract the Execution Engine, Queue
// Processor, and API Surface depend on. The only implementation in
// this repository is PostgresStore; the interface exists so those
// three can be tested against an in-memory or sqlmock-backed double
// without an import cycle.
type Store interface {
	CreateWorkflow(ctx context.Context, input CreateWorkflowInput) (*Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, input UpdateWorkflowInput) (*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)

	CreateExecution(ctx context.Context, workflowID string) (*Execution, error)
	ClaimNextPending(ctx context.Context) (string, error)
	TransitionExecution(ctx context.Context, id string, status ExecutionStatus, errMsg *string) error
	GetLatestExecution(ctx context.Context, workflowID string) (*Execution, error)
	GetExecutionWithSteps(ctx context.Context, id string) (*ExecutionWithSteps, error)
	GetExecutionWithWorkflow(ctx context.Context, id string) (*ExecutionWithWorkflow, error)

	CreateStep(ctx context.Context, executionID, nodeID string) (*ExecutionStep, error)
	StepToRunning(ctx context.Context, stepID string) error
	StepToCompleted(ctx context.Context, stepID string, result json.RawMessage) error
	StepToFailed(ctx context.Context, stepID string, errMsg string) error

	// MarkStuckRunningAsFailed implements the crash-recovery startup
	// scan: any execution left running from a prior process crash is
	// failed, never resumed.
	MarkStuckRunningAsFailed(ctx context.Context, reason string) (int64, error)

	// CountPendingExecutions reports how many executions are still
	// awaiting a worker, for the Queue Processor's depth gauge.
	CountPendingExecutions(ctx context.Context) (int64, error)
}

// PostgresStore is the sqlx/lib-pq backed Store implementation.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an already-connected *sqlx.DB.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateWorkflow(ctx context.Context, input CreateWorkflowInput) (*Workflow, error) {
	now := time.Now().UTC()
	w := &Workflow{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Nodes:     JSONColumn(input.Nodes),
		Edges:     JSONColumn(input.Edges),
		Status:    WorkflowStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	const q = `
		INSERT INTO workflows (id, name, nodes, edges, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`
	if err := s.db.QueryRowxContext(ctx, q, w.ID, w.Name, []byte(w.Nodes), []byte(w.Edges), w.Status, w.CreatedAt, w.UpdatedAt).StructScan(w); err != nil {
		return nil, &StoreError{Op: "CreateWorkflow", Err: err}
	}
	return w, nil
}

func (s *PostgresStore) UpdateWorkflow(ctx context.Context, id string, input UpdateWorkflowInput) (*Workflow, error) {
	current, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	name := current.Name
	if input.Name != "" {
		name = input.Name
	}
	nodes := []byte(current.Nodes)
	if len(input.Nodes) > 0 {
		nodes = input.Nodes
	}
	edges := []byte(current.Edges)
	if len(input.Edges) > 0 {
		edges = input.Edges
	}
	updatedAt := time.Now().UTC()

	const q = `
		UPDATE workflows
		SET name = $2, nodes = $3, edges = $4, updated_at = $5
		WHERE id = $1
		RETURNING *`
	w := &Workflow{}
	if err := s.db.QueryRowxContext(ctx, q, id, name, nodes, edges, updatedAt).StructScan(w); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "UpdateWorkflow", Err: err}
	}
	return w, nil
}

func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	const q = `DELETE FROM workflows WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return &StoreError{Op: "DeleteWorkflow", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "DeleteWorkflow", Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	const q = `SELECT * FROM workflows ORDER BY updated_at DESC`
	var ws []Workflow
	if err := s.db.SelectContext(ctx, &ws, q); err != nil {
		return nil, &StoreError{Op: "ListWorkflows", Err: err}
	}
	return ws, nil
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	const q = `SELECT * FROM workflows WHERE id = $1`
	w := &Workflow{}
	if err := s.db.GetContext(ctx, w, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "GetWorkflow", Err: err}
	}
	return w, nil
}

func (s *PostgresStore) CreateExecution(ctx context.Context, workflowID string) (*Execution, error) {
	const q = `
		INSERT INTO workflow_executions (id, workflow_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`
	e := &Execution{}
	id := uuid.New().String()
	now := time.Now().UTC()
	if err := s.db.QueryRowxContext(ctx, q, id, workflowID, ExecutionStatusPending, now).StructScan(e); err != nil {
		return nil, &StoreError{Op: "CreateExecution", Err: err}
	}
	return e, nil
}

// ClaimNextPending atomically selects the oldest pending execution and
// transitions it to running, all within one statement so concurrent
// workers never observe or claim the same row twice.
func (s *PostgresStore) ClaimNextPending(ctx context.Context) (string, error) {
	const q = `
		UPDATE workflow_executions
		SET status = $1, started_at = $2
		WHERE id = (
			SELECT id FROM workflow_executions
			WHERE status = $3
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`
	var id string
	err := s.db.GetContext(ctx, &id, q, ExecutionStatusRunning, time.Now().UTC(), ExecutionStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoPendingExecution
		}
		return "", &StoreError{Op: "ClaimNextPending", Err: err}
	}
	return id, nil
}

// TransitionExecution enforces the monotonic pending->running->
// {completed,failed} lifecycle, setting started_at on entry to running
// and completed_at on entry to a terminal state.
func (s *PostgresStore) TransitionExecution(ctx context.Context, id string, status ExecutionStatus, errMsg *string) error {
	current, err := s.getExecution(ctx, id)
	if err != nil {
		return err
	}
	if !validTransition(current.Status, status) {
		return ErrInvalidTransition
	}

	var startedAt, completedAt *time.Time
	now := time.Now().UTC()
	if status == ExecutionStatusRunning {
		startedAt = &now
	}
	if status == ExecutionStatusCompleted || status == ExecutionStatusFailed {
		completedAt = &now
	}

	const q = `
		UPDATE workflow_executions
		SET status = $2,
		    error_message = COALESCE($3, error_message),
		    started_at = COALESCE($4, started_at),
		    completed_at = COALESCE($5, completed_at)
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, status, errMsg, startedAt, completedAt); err != nil {
		return &StoreError{Op: "TransitionExecution", Err: err}
	}
	return nil
}

func validTransition(from, to ExecutionStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case ExecutionStatusPending:
		return to == ExecutionStatusRunning
	case ExecutionStatusRunning:
		return to == ExecutionStatusCompleted || to == ExecutionStatusFailed
	default:
		return false
	}
}

func (s *PostgresStore) getExecution(ctx context.Context, id string) (*Execution, error) {
	const q = `SELECT * FROM workflow_executions WHERE id = $1`
	e := &Execution{}
	if err := s.db.GetContext(ctx, e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "GetExecution", Err: err}
	}
	return e, nil
}

func (s *PostgresStore) GetLatestExecution(ctx context.Context, workflowID string) (*Execution, error) {
	const q = `
		SELECT * FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	e := &Execution{}
	if err := s.db.GetContext(ctx, e, q, workflowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "GetLatestExecution", Err: err}
	}
	return e, nil
}

func (s *PostgresStore) GetExecutionWithSteps(ctx context.Context, id string) (*ExecutionWithSteps, error) {
	e, err := s.getExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	const q = `
		SELECT * FROM execution_steps
		WHERE execution_id = $1 AND id IS NOT NULL
		ORDER BY created_at ASC`
	var steps []ExecutionStep
	if err := s.db.SelectContext(ctx, &steps, q, id); err != nil {
		return nil, &StoreError{Op: "GetExecutionWithSteps", Err: err}
	}
	return &ExecutionWithSteps{Execution: *e, Steps: steps}, nil
}

func (s *PostgresStore) GetExecutionWithWorkflow(ctx context.Context, id string) (*ExecutionWithWorkflow, error) {
	e, err := s.getExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	w, err := s.GetWorkflow(ctx, e.WorkflowID)
	if err != nil {
		return nil, err
	}
	def, err := w.Graph()
	if err != nil {
		return nil, &GraphError{Message: "malformed workflow definition: " + err.Error()}
	}
	return &ExecutionWithWorkflow{
		Execution:    *e,
		WorkflowName: w.Name,
		Definition:   def,
	}, nil
}

func (s *PostgresStore) CreateStep(ctx context.Context, executionID, nodeID string) (*ExecutionStep, error) {
	const q = `
		INSERT INTO execution_steps (id, execution_id, node_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`
	step := &ExecutionStep{}
	id := uuid.New().String()
	now := time.Now().UTC()
	if err := s.db.QueryRowxContext(ctx, q, id, executionID, nodeID, StepStatusPending, now).StructScan(step); err != nil {
		return nil, &StoreError{Op: "CreateStep", Err: err}
	}
	return step, nil
}

func (s *PostgresStore) StepToRunning(ctx context.Context, stepID string) error {
	const q = `UPDATE execution_steps SET status = $2, started_at = $3 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, stepID, StepStatusRunning, time.Now().UTC())
	if err != nil {
		return &StoreError{Op: "StepToRunning", Err: err}
	}
	return nil
}

func (s *PostgresStore) StepToCompleted(ctx context.Context, stepID string, result json.RawMessage) error {
	const q = `
		UPDATE execution_steps
		SET status = $2, result = $3, completed_at = $4
		WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, stepID, StepStatusCompleted, []byte(result), time.Now().UTC())
	if err != nil {
		return &StoreError{Op: "StepToCompleted", Err: err}
	}
	return nil
}

func (s *PostgresStore) StepToFailed(ctx context.Context, stepID string, errMsg string) error {
	const q = `
		UPDATE execution_steps
		SET status = $2, error_message = $3, completed_at = $4
		WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, stepID, StepStatusFailed, errMsg, time.Now().UTC())
	if err != nil {
		return &StoreError{Op: "StepToFailed", Err: err}
	}
	return nil
}

func (s *PostgresStore) MarkStuckRunningAsFailed(ctx context.Context, reason string) (int64, error) {
	const q = `
		UPDATE workflow_executions
		SET status = $1, error_message = $2, completed_at = $3
		WHERE status = $4`
	res, err := s.db.ExecContext(ctx, q, ExecutionStatusFailed, reason, time.Now().UTC(), ExecutionStatusRunning)
	if err != nil {
		return 0, &StoreError{Op: "MarkStuckRunningAsFailed", Err: err}
	}
	return res.RowsAffected()
}

// CountPendingExecutions reports the current pending-execution queue
// depth.
func (s *PostgresStore) CountPendingExecutions(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM workflow_executions WHERE status = $1`
	var count int64
	if err := s.db.GetContext(ctx, &count, q, ExecutionStatusPending); err != nil {
		return 0, &StoreError{Op: "CountPendingExecutions", Err: err}
	}
	return count, nil
}
