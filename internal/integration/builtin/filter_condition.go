package builtin

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/loomwork/loom/internal/expression"
	"github.com/loomwork/loom/internal/integration"
)

// filterCondition compares two hydrated values with an operator and
// reports a boolean result, in the spirit of branch_condition but
// without embedding a JS comparison into one string. left/right are
// hydrated independently (quote=false, the Registry default); a string
// field, including one holding a {{ }} reference, arrives as the
// rendered string, so two such values compare as strings, not numbers.
// Only non-string JSON literals in the config keep their own type. The
// comparison itself runs through expr-lang against an env carrying the
// two values, never by re-stringing them into source text.
func filterCondition() integration.Descriptor {
	return integration.Descriptor{
		ID:       "filter_condition",
		Name:     "Filter",
		Category: integration.CategoryLogic,
		Version:  "1.0.0",
		Schema: integration.Schema{
			Fields: []integration.SchemaField{
				{Key: "left", Label: "Left Value", Type: integration.FieldText, SupportExpressions: true},
				{Key: "operator", Label: "Operator", Type: integration.FieldSelect, Options: []string{"==", "!=", ">", ">=", "<", "<=", "contains", "starts_with", "ends_with"}},
				{Key: "right", Label: "Right Value", Type: integration.FieldText, SupportExpressions: true},
			},
			Required: []string{"left", "operator", "right"},
		},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			operator, _ := config["operator"].(string)
			exprText, ok := operatorExpressions[operator]
			if !ok {
				return nil, fmt.Errorf("filter_condition: unknown operator %q", operator)
			}
			env := map[string]interface{}{
				"left":  config["left"],
				"right": config["right"],
			}
			program, err := expr.Compile(exprText, expr.Env(env), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("filter_condition: compiling operator %q: %w", operator, err)
			}
			out, err := expr.Run(program, env)
			if err != nil {
				return nil, fmt.Errorf("filter_condition: evaluating: %w", err)
			}
			result, _ := out.(bool)
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

var operatorExpressions = map[string]string{
	"==":          "left == right",
	"!=":          "left != right",
	">":           "left > right",
	">=":          "left >= right",
	"<":           "left < right",
	"<=":          "left <= right",
	"contains":    `left contains right`,
	"starts_with": `left startsWith right`,
	"ends_with":   `left endsWith right`,
}
