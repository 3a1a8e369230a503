package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomwork/loom/internal/expression"
	"github.com/loomwork/loom/internal/integration"
)

// setVariable writes a named value into the execution's variable
// scope. Its value field is already hydrated by the Registry before
// Execute runs. The result carries the value before any JSON parse
// attempt; the Engine is responsible for the parse-or-keep-raw
// ambiguity, since that parsing affects ctx.Variables, which only the
// Engine mutates.
func setVariable() integration.Descriptor {
	return integration.Descriptor{
		ID:       "set_variable",
		Name:     "Set Variable",
		Category: integration.CategoryAction,
		Version:  "1.0.0",
		Schema: integration.Schema{
			Fields: []integration.SchemaField{
				{Key: "name", Label: "Variable Name", Type: integration.FieldText},
				{Key: "value", Label: "Value", Type: integration.FieldText, SupportExpressions: true},
			},
			Required: []string{"name"},
		},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			name, _ := config["name"].(string)
			if name == "" {
				return nil, fmt.Errorf("set_variable: name is required")
			}
			value := config["value"]
			return &integration.Result{
				Success: true,
				Data: map[string]interface{}{
					"variableName": name,
					"value":        value,
					"timestamp":    now(),
				},
			}, nil
		},
	}
}

// ParseVariableValue implements the source's JSON-parse-or-keep-raw
// behavior: if value is a string that parses as JSON, the parsed form
// is used (enabling {{$vars.x.y}} lookups into it); otherwise the raw
// string is kept as-is.
func ParseVariableValue(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return parsed
}
