// Package workflow defines the persisted graph, execution, and step
// entities and their lifecycle rules.
package workflow

import (
	"encoding/json"
	"time"
)

// WorkflowStatus is the lifecycle state of a persisted workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
)

// NodeType classifies a Node's role in the graph.
type NodeType string

const (
	NodeTypeTrigger NodeType = "trigger"
	NodeTypeAction  NodeType = "action"
	NodeTypeLogic   NodeType = "logic"
)

// Position is the editor-only 2D placement of a node; carried through
// so the graph round-trips without loss, never interpreted here.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one vertex of a Workflow's graph. Subtype keys a registered
// Integration; Config is opaque until hydrated and validated against
// that Integration's schema at execution time.
type Node struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Subtype  string          `json:"subtype"`
	Config   json.RawMessage `json:"config"`
	Position Position        `json:"position"`
}

// Edge connects two nodes. SourceHandle, when set, carries the branch
// label ("true"/"false") a logic node's outgoing edges are classified
// by.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Definition is the acyclic directed graph a Workflow persists.
type Definition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Workflow is a persisted, named automation graph.
type Workflow struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Nodes     JSONColumn     `db:"nodes" json:"nodes"`
	Edges     JSONColumn     `db:"edges" json:"edges"`
	Status    WorkflowStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Graph decodes the workflow's stored nodes/edges columns into a
// Definition for traversal by the engine.
func (w *Workflow) Graph() (Definition, error) {
	var def Definition
	if err := json.Unmarshal(w.Nodes, &def.Nodes); err != nil {
		return def, err
	}
	if err := json.Unmarshal(w.Edges, &def.Edges); err != nil {
		return def, err
	}
	return def, nil
}

// CreateWorkflowInput is the payload accepted by the API to create a
// Workflow.
type CreateWorkflowInput struct {
	Name  string          `json:"name" validate:"required,min=1,max=255"`
	Nodes json.RawMessage `json:"nodes" validate:"required"`
	Edges json.RawMessage `json:"edges" validate:"required"`
}

// UpdateWorkflowInput is the payload accepted by the API to update a
// Workflow; all fields are optional and left-untouched when absent.
type UpdateWorkflowInput struct {
	Name  string          `json:"name"`
	Nodes json.RawMessage `json:"nodes"`
	Edges json.RawMessage `json:"edges"`
}

// ExecutionStatus is the lifecycle state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Execution is one run of a Workflow.
type Execution struct {
	ID           string          `db:"id" json:"id"`
	WorkflowID   string          `db:"workflow_id" json:"workflow_id"`
	Status       ExecutionStatus `db:"status" json:"status"`
	StartedAt    *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// StepStatus is the lifecycle state of one node's execution record.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// ExecutionStep is the audit record of one node within one execution.
type ExecutionStep struct {
	ID           string      `db:"id" json:"id"`
	ExecutionID  string      `db:"execution_id" json:"execution_id"`
	NodeID       string      `db:"node_id" json:"node_id"`
	Status       StepStatus  `db:"status" json:"status"`
	Result       JSONColumn  `db:"result" json:"result,omitempty"`
	ErrorMessage *string     `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time  `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// ExecutionWithSteps is a joined read of one execution and its steps,
// ordered by created_at.
type ExecutionWithSteps struct {
	Execution
	Steps []ExecutionStep `json:"steps"`
}

// ExecutionWithWorkflow is a joined read of one execution and the
// workflow graph it ran against.
type ExecutionWithWorkflow struct {
	Execution
	WorkflowName string     `json:"workflow_name"`
	Definition   Definition `json:"-"`
}

// WorkflowContext models the runtime-only state of one execution:
// its variables and node outputs, never persisted. Engine.Execute does
// not use this type; it keeps its run state in an expression.Context.
type WorkflowContext struct {
	ExecutionID string
	Variables   map[string]interface{}
	NodeOutputs map[string]interface{}
}

// NewWorkflowContext returns an empty context for a fresh run.
func NewWorkflowContext(executionID string) *WorkflowContext {
	return &WorkflowContext{
		ExecutionID: executionID,
		Variables:   make(map[string]interface{}),
		NodeOutputs: make(map[string]interface{}),
	}
}
