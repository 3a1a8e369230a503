package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/loomwork/loom/internal/integration"
	"github.com/loomwork/loom/internal/integration/builtin"
	"github.com/loomwork/loom/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	reg := integration.NewRegistry(nil)
	for _, d := range builtin.All() {
		require.NoError(t, reg.Register(d))
	}
	store := newFakeStore()
	return New(store, reg, nil, nil), store
}

func cfg(t *testing.T, v map[string]interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// TestExecute_LinearRun is scenario S1: manual -> set_variable -> delay.
func TestExecute_LinearRun(t *testing.T) {
	eng, store := newTestEngine(t)

	def := workflow.Definition{
		Nodes: []workflow.Node{
			{ID: "m", Subtype: "manual_trigger", Type: workflow.NodeTypeTrigger},
			{ID: "s", Subtype: "set_variable", Type: workflow.NodeTypeAction, Config: cfg(t, map[string]interface{}{"name": "x", "value": "42"})},
			{ID: "d", Subtype: "delay", Type: workflow.NodeTypeAction, Config: cfg(t, map[string]interface{}{"amount": 0.0, "unit": "seconds"})},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "m", Target: "s"},
			{ID: "e2", Source: "s", Target: "d"},
		},
	}
	store.addWorkflow("wf-1", def)
	store.addExecution("exec-1", "wf-1")

	err := eng.Execute(context.Background(), "exec-1")
	require.NoError(t, err)

	withSteps, _ := store.GetExecutionWithSteps(context.Background(), "exec-1")
	assert.Equal(t, workflow.ExecutionStatusCompleted, withSteps.Status)
	require.Len(t, withSteps.Steps, 3)
	assert.Equal(t, "m", withSteps.Steps[0].NodeID)
	assert.Equal(t, "s", withSteps.Steps[1].NodeID)
	assert.Equal(t, "d", withSteps.Steps[2].NodeID)
	for _, st := range withSteps.Steps {
		assert.Equal(t, workflow.StepStatusCompleted, st.Status)
	}
}

// TestExecute_BranchTruePath is scenario S2.
func TestExecute_BranchTruePath(t *testing.T) {
	eng, store := newTestEngine(t)

	def := workflow.Definition{
		Nodes: []workflow.Node{
			{ID: "m", Subtype: "manual_trigger", Type: workflow.NodeTypeTrigger},
			{ID: "b", Subtype: "branch_condition", Type: workflow.NodeTypeLogic, Config: cfg(t, map[string]interface{}{"condition": `"true" === "true"`})},
			{ID: "a1", Subtype: "manual_trigger", Type: workflow.NodeTypeAction},
			{ID: "a2", Subtype: "manual_trigger", Type: workflow.NodeTypeAction},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "m", Target: "b"},
			{ID: "e2", Source: "b", Target: "a1", SourceHandle: "true"},
			{ID: "e3", Source: "b", Target: "a2", SourceHandle: "false"},
		},
	}
	store.addWorkflow("wf-2", def)
	store.addExecution("exec-2", "wf-2")

	err := eng.Execute(context.Background(), "exec-2")
	require.NoError(t, err)

	withSteps, _ := store.GetExecutionWithSteps(context.Background(), "exec-2")
	assert.Equal(t, workflow.ExecutionStatusCompleted, withSteps.Status)
	require.Len(t, withSteps.Steps, 3)
	ids := []string{withSteps.Steps[0].NodeID, withSteps.Steps[1].NodeID, withSteps.Steps[2].NodeID}
	assert.Equal(t, []string{"m", "b", "a1"}, ids)
}

// TestExecute_CycleRejection is scenario S4.
func TestExecute_CycleRejection(t *testing.T) {
	eng, store := newTestEngine(t)

	def := workflow.Definition{
		Nodes: []workflow.Node{
			{ID: "a", Subtype: "manual_trigger"},
			{ID: "b", Subtype: "manual_trigger"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
	}
	store.addWorkflow("wf-4", def)
	store.addExecution("exec-4", "wf-4")

	err := eng.Execute(context.Background(), "exec-4")
	require.Error(t, err)

	withSteps, _ := store.GetExecutionWithSteps(context.Background(), "exec-4")
	assert.Equal(t, workflow.ExecutionStatusFailed, withSteps.Status)
	require.NotNil(t, withSteps.ErrorMessage)
	assert.Contains(t, *withSteps.ErrorMessage, "cycle")
}

// TestExecute_MissingIntegration is scenario S5.
func TestExecute_MissingIntegration(t *testing.T) {
	eng, store := newTestEngine(t)

	def := workflow.Definition{
		Nodes: []workflow.Node{
			{ID: "m", Subtype: "manual_trigger"},
			{ID: "x", Subtype: "nonexistent_xyz"},
			{ID: "after", Subtype: "manual_trigger"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "m", Target: "x"},
			{ID: "e2", Source: "x", Target: "after"},
		},
	}
	store.addWorkflow("wf-5", def)
	store.addExecution("exec-5", "wf-5")

	err := eng.Execute(context.Background(), "exec-5")
	require.Error(t, err)

	withSteps, _ := store.GetExecutionWithSteps(context.Background(), "exec-5")
	assert.Equal(t, workflow.ExecutionStatusFailed, withSteps.Status)
	require.Len(t, withSteps.Steps, 2)
	assert.Equal(t, workflow.StepStatusFailed, withSteps.Steps[1].Status)
	require.NotNil(t, withSteps.Steps[1].ErrorMessage)
	assert.Contains(t, *withSteps.Steps[1].ErrorMessage, "not found")
}

// TestExecute_Interpolation is scenario S3.
func TestExecute_Interpolation(t *testing.T) {
	eng, store := newTestEngine(t)

	def := workflow.Definition{
		Nodes: []workflow.Node{
			{ID: "m", Subtype: "manual_trigger"},
			{ID: "s", Subtype: "set_variable", Config: cfg(t, map[string]interface{}{
				"name":  "y",
				"value": "{{$node.m.data.triggered}}",
			})},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "m", Target: "s"},
		},
	}
	store.addWorkflow("wf-3", def)
	store.addExecution("exec-3", "wf-3")

	err := eng.Execute(context.Background(), "exec-3")
	require.NoError(t, err)

	withSteps, _ := store.GetExecutionWithSteps(context.Background(), "exec-3")
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(withSteps.Steps[1].Result, &result))
	data := result["data"].(map[string]interface{})
	assert.Equal(t, "true", data["value"])
}
