package builtin

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/loomwork/loom/internal/expression"
	"github.com/loomwork/loom/internal/integration"
)

// branchCondition evaluates a JS-style boolean comparison string. The
// Registry hydrates this node's "condition" field with quote=true, so
// a substituted scalar like $node.x.data.status arrives already
// wrapped in double quotes (e.g. active === "active"), making the
// hydrated text valid JS. A single short-lived goja VM is enough here:
// this is one boolean expression per node execution, not a candidate
// for pooling or sandboxing.
func branchCondition() integration.Descriptor {
	return integration.Descriptor{
		ID:       "branch_condition",
		Name:     "Branch",
		Category: integration.CategoryLogic,
		Version:  "1.0.0",
		Schema: integration.Schema{
			Fields: []integration.SchemaField{
				{Key: "condition", Label: "Condition", Type: integration.FieldText, SupportExpressions: true},
			},
			Required: []string{"condition"},
		},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			condition, _ := config["condition"].(string)
			result, err := evalJSBoolean(condition)
			if err != nil {
				return nil, fmt.Errorf("branch_condition: %w", err)
			}
			return &integration.Result{
				Success: true,
				Data: map[string]interface{}{
					"result":    result,
					"timestamp": now(),
				},
			}, nil
		},
	}
}

func evalJSBoolean(expr string) (bool, error) {
	if expr == "" {
		return false, fmt.Errorf("empty condition")
	}
	vm := goja.New()
	value, err := vm.RunString("(" + expr + ")")
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	return value.ToBoolean(), nil
}
