package builtin

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/loomwork/loom/internal/expression"
	"github.com/loomwork/loom/internal/integration"
)

// transformData evaluates an expr-lang expression against the live
// execution context, exposing it as "vars" and "node" so a transform
// can reach structured data the {{ }} grammar can only flatten into
// strings (e.g. node["fetch"].data.items | filter(...)).
func transformData() integration.Descriptor {
	return integration.Descriptor{
		ID:       "transform_data",
		Name:     "Transform",
		Category: integration.CategoryAction,
		Version:  "1.0.0",
		Schema: integration.Schema{
			Fields: []integration.SchemaField{
				{Key: "expression", Label: "Expression", Type: integration.FieldTextarea},
			},
			Required: []string{"expression"},
		},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			exprText, _ := config["expression"].(string)
			if exprText == "" {
				return nil, fmt.Errorf("transform_data: expression is required")
			}
			env := map[string]interface{}{
				"vars": wfCtx.Variables,
				"node": wfCtx.NodeOutputs,
			}
			program, err := expr.Compile(exprText, expr.Env(env))
			if err != nil {
				return nil, fmt.Errorf("transform_data: compiling expression: %w", err)
			}
			out, err := expr.Run(program, env)
			if err != nil {
				return nil, fmt.Errorf("transform_data: evaluating expression: %w", err)
			}
			return &integration.Result{
				Success: true,
				Data: map[string]interface{}{
					"value":     out,
					"timestamp": now(),
				},
			}, nil
		},
	}
}
