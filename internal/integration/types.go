// Package integration adapts heterogeneous side-effecting operations
// behind one uniform contract: a schema, a validator, and an executor,
// keyed by the subtype a workflow node names.
package integration

import (
	"context"

	"github.com/loomwork/loom/internal/expression"
)

// Category classifies where in the graph an Integration may appear.
type Category string

const (
	CategoryTrigger Category = "trigger"
	CategoryAction  Category = "action"
	CategoryLogic   Category = "logic"
)

// FieldType is the editor-facing type of one schema field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldEmail    FieldType = "email"
	FieldURL      FieldType = "url"
)

// SchemaField describes one key of an Integration's config.
type SchemaField struct {
	Key                string
	Label              string
	Type               FieldType
	Options            []string // for FieldSelect
	SupportExpressions bool
	Validate           func(value interface{}) error
}

// Schema is an Integration's ordered config fields plus the subset
// that must be present.
type Schema struct {
	Fields   []SchemaField
	Required []string
}

// Auth is informational metadata about credentials an Integration
// uses; the core contract never inspects it.
type Auth struct {
	Type        string
	Description string
}

// Result is what an Integration's executor returns. Data is a
// structured-but-opaque payload the Expression Evaluator reaches into
// via $node references; once ExecuteIntegration has finished with it,
// Metadata carries nodeType, subtype, and executionTime, except for an
// unknown integration id, whose Result carries only nodeType "unknown".
type Result struct {
	Success  bool                   `json:"success"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Execute runs an Integration's side effect against hydrated config
// and the live workflow context. Implementations must not panic;
// ExecuteIntegration recovers at the boundary regardless, but a clean
// Result{Success:false} is the idiomatic path.
type ExecuteFunc func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*Result, error)

// ValidateFunc checks a config map before execution. When absent, the
// Registry's default validator runs instead (required-key presence
// plus per-field Validate callbacks).
type ValidateFunc func(config map[string]interface{}) (bool, map[string]string)

// Descriptor is a registered Integration: its schema, executor, and
// identifying metadata.
type Descriptor struct {
	ID       string
	Name     string
	Category Category
	Version  string
	Schema   Schema
	Execute  ExecuteFunc
	Validate ValidateFunc
	Auth     *Auth
}
