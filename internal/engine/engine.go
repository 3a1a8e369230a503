// Package engine orchestrates one workflow execution end to end:
// topological ordering, conditional branch skipping, node dispatch
// through the Integration Registry, and the durable step audit trail.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loomwork/loom/internal/expression"
	"github.com/loomwork/loom/internal/integration"
	"github.com/loomwork/loom/internal/integration/builtin"
	"github.com/loomwork/loom/internal/metrics"
	"github.com/loomwork/loom/internal/workflow"
)

// Engine executes exactly one workflow run per Execute call. It holds
// no per-run state between calls; everything scoped to a run (branch
// decisions, the workflow context) lives on the stack of Execute
// itself.
type Engine struct {
	store    workflow.Store
	registry *integration.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds an Engine with its explicit dependencies. None of them is
// a package-level global: all are constructed once in main and
// injected here. metrics may be nil, in which case the Engine simply
// records nothing.
func New(store workflow.Store, registry *integration.Registry, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, registry: registry, metrics: m, logger: logger}
}

// Execute runs executionID to completion, recording one ExecutionStep
// per non-skipped node and finalizing the execution's terminal status.
// It never resumes a partially run execution; restart recovery is the
// Queue Processor's startup scan, not a concern of Execute itself.
func (e *Engine) Execute(ctx context.Context, executionID string) error {
	ew, err := e.store.GetExecutionWithWorkflow(ctx, executionID)
	if err != nil {
		_ = e.store.TransitionExecution(ctx, executionID, workflow.ExecutionStatusFailed, strPtr("Execution not found"))
		return fmt.Errorf("engine: load execution %s: %w", executionID, err)
	}
	runStart := time.Now()

	if ew.Status == workflow.ExecutionStatusPending {
		if err := e.store.TransitionExecution(ctx, executionID, workflow.ExecutionStatusRunning, nil); err != nil {
			return fmt.Errorf("engine: transition to running: %w", err)
		}
	}

	wfCtx := &expression.Context{
		Variables:   map[string]interface{}{},
		NodeOutputs: map[string]interface{}{},
	}
	branchDecisions := map[string]bool{}

	order, err := TopoSort(ew.Definition.Nodes, ew.Definition.Edges)
	if err != nil {
		e.fail(ctx, executionID, ew.WorkflowID, runStart, err.Error())
		return err
	}

	nodesByID := make(map[string]workflow.Node, len(ew.Definition.Nodes))
	for _, n := range ew.Definition.Nodes {
		nodesByID[n.ID] = n
	}
	incoming := incomingEdges(ew.Definition.Edges)

	for _, nodeID := range order {
		node := nodesByID[nodeID]

		if ShouldSkip(nodeID, incoming[nodeID], branchDecisions) {
			continue
		}

		step, err := e.store.CreateStep(ctx, executionID, nodeID)
		if err != nil {
			e.fail(ctx, executionID, ew.WorkflowID, runStart, err.Error())
			return fmt.Errorf("engine: create step for %s: %w", nodeID, err)
		}
		if err := e.store.StepToRunning(ctx, step.ID); err != nil {
			e.fail(ctx, executionID, ew.WorkflowID, runStart, err.Error())
			return fmt.Errorf("engine: step to running: %w", err)
		}

		stepStart := time.Now()
		result := e.registry.ExecuteIntegration(ctx, node.Subtype, node.Config, wfCtx)
		e.recordStep(node.Subtype, result.Success, time.Since(stepStart))

		if node.Subtype == "branch_condition" {
			if b, ok := result.Data["result"].(bool); ok {
				branchDecisions[nodeID] = b
			}
		}

		resultJSON, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			e.fail(ctx, executionID, ew.WorkflowID, runStart, marshalErr.Error())
			return fmt.Errorf("engine: marshal result for %s: %w", nodeID, marshalErr)
		}
		wfCtx.NodeOutputs[nodeID] = decodeOrNil(resultJSON)

		if node.Subtype == "set_variable" && result.Success {
			if name, ok := result.Data["variableName"].(string); ok {
				wfCtx.Variables[name] = builtin.ParseVariableValue(result.Data["value"])
			}
		}

		if !result.Success {
			_ = e.store.StepToFailed(ctx, step.ID, result.Error)
			e.fail(ctx, executionID, ew.WorkflowID, runStart, result.Error)
			return fmt.Errorf("engine: node %s failed: %s", nodeID, result.Error)
		}
		if err := e.store.StepToCompleted(ctx, step.ID, resultJSON); err != nil {
			e.fail(ctx, executionID, ew.WorkflowID, runStart, err.Error())
			return fmt.Errorf("engine: step to completed: %w", err)
		}
	}

	if err := e.store.TransitionExecution(ctx, executionID, workflow.ExecutionStatusCompleted, nil); err != nil {
		return fmt.Errorf("engine: transition to completed: %w", err)
	}
	e.recordExecution(ew.WorkflowID, "completed", time.Since(runStart))
	return nil
}

func (e *Engine) fail(ctx context.Context, executionID, workflowID string, runStart time.Time, message string) {
	if err := e.store.TransitionExecution(ctx, executionID, workflow.ExecutionStatusFailed, &message); err != nil {
		e.logger.Error("failed to mark execution failed", "execution_id", executionID, "error", err)
	}
	e.recordExecution(workflowID, "failed", time.Since(runStart))
}

func (e *Engine) recordExecution(workflowID, status string, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordExecution(workflowID, status, elapsed.Seconds())
}

func (e *Engine) recordStep(subtype string, success bool, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	e.metrics.RecordStep(subtype, status, elapsed.Seconds())
}

func decodeOrNil(raw json.RawMessage) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// TopoSort implements Kahn's algorithm with FIFO tie-breaking by the
// nodes slice's own insertion order, so the resulting run order is
// stable and reproducible across runs of the same graph.
func TopoSort(nodes []workflow.Node, edges []workflow.Edge) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] = 0
	}
	for _, e := range edges {
		indegree[e.Target]++
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
	}

	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(nodes) {
		return order, &workflow.GraphError{Message: "workflow contains cycles"}
	}
	return order, nil
}

// ShouldSkip implements the conditional-branch skip algorithm: a node
// is skipped if any incoming edge from a decided branch source
// contradicts that decision. An edge is the "true" edge if its
// SourceHandle is "true" or, failing that, its ID contains the legacy
// "-true-" substring fallback; symmetrically for "false". Edges from
// undecided or non-branch sources never cause a skip.
func ShouldSkip(nodeID string, incoming []workflow.Edge, branchDecisions map[string]bool) bool {
	for _, e := range incoming {
		decision, decided := branchDecisions[e.Source]
		if !decided {
			continue
		}
		if isTrueEdge(e) && !decision {
			return true
		}
		if isFalseEdge(e) && decision {
			return true
		}
	}
	return false
}

func isTrueEdge(e workflow.Edge) bool {
	if e.SourceHandle == "true" {
		return true
	}
	return strings.Contains(e.ID, "-true-")
}

func isFalseEdge(e workflow.Edge) bool {
	if e.SourceHandle == "false" {
		return true
	}
	return strings.Contains(e.ID, "-false-")
}

func incomingEdges(edges []workflow.Edge) map[string][]workflow.Edge {
	out := make(map[string][]workflow.Edge)
	for _, e := range edges {
		out[e.Target] = append(out[e.Target], e)
	}
	return out
}

func strPtr(s string) *string { return &s }
