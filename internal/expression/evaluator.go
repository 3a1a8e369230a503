// Package expression implements the {{ }} substitution grammar nodes
// use to bind their configuration to runtime execution state.
package expression

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Context is the runtime state an expression resolves against: one
// execution's recorded node outputs and named variables.
type Context struct {
	Variables   map[string]interface{}
	NodeOutputs map[string]interface{}
}

// Evaluate substitutes every {{ ... }} occurrence in text. Recognized
// forms are "$node.<node_id>.<dotted.path>" and "$vars.<name>"; any
// other form is left unchanged, literal braces intact. Missing lookups
// resolve to the empty string. When quote is true, a substituted
// scalar string value is wrapped in JS-compatible double quotes so the
// result can be embedded in a boolean comparison expression.
func Evaluate(text string, ctx *Context, quote bool) string {
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := exprPattern.FindStringSubmatch(match)[1]
		value, ok := resolve(inner, ctx)
		if !ok {
			return match
		}
		return render(value, quote)
	})
}

// Hydrate recursively descends an arbitrary decoded JSON value (as
// produced by json.Unmarshal into interface{}), evaluating every
// string it finds to a fixed point: Evaluate is applied repeatedly
// until the output equals the input, guarded by a seen-set so cyclic
// text (an expression whose resolution reintroduces itself) cannot
// loop forever. Arrays are hydrated element-wise, maps value-wise;
// map keys are left untouched.
func Hydrate(value interface{}, ctx *Context, quote bool) interface{} {
	switch v := value.(type) {
	case string:
		return fixedPoint(v, ctx, quote)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Hydrate(item, ctx, quote)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = Hydrate(item, ctx, quote)
		}
		return out
	default:
		return v
	}
}

// HydrateJSON decodes a raw JSON document, hydrates it, and re-encodes
// the result. It is the entry point the Integration Registry uses to
// hydrate a node's opaque config before handing it to an executor.
func HydrateJSON(raw json.RawMessage, ctx *Context, quote bool) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	hydrated := Hydrate(decoded, ctx, quote)
	return json.Marshal(hydrated)
}

func fixedPoint(s string, ctx *Context, quote bool) string {
	seen := map[string]bool{s: true}
	for {
		next := Evaluate(s, ctx, quote)
		if next == s {
			return next
		}
		if seen[next] {
			return next
		}
		seen[next] = true
		s = next
	}
}

func resolve(expr string, ctx *Context) (interface{}, bool) {
	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, "$node."):
		rest := strings.TrimPrefix(expr, "$node.")
		segments := splitPath(rest)
		if len(segments) == 0 {
			return nil, false
		}
		nodeID := segments[0]
		root, ok := ctx.NodeOutputs[nodeID]
		if !ok {
			return "", true
		}
		return walk(root, segments[1:]), true
	case strings.HasPrefix(expr, "$vars."):
		rest := strings.TrimPrefix(expr, "$vars.")
		segments := splitPath(rest)
		if len(segments) == 0 {
			return nil, false
		}
		root, ok := ctx.Variables[segments[0]]
		if !ok {
			return "", true
		}
		return walk(root, segments[1:]), true
	default:
		return nil, false
	}
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// walk descends a decoded value one dotted-path segment at a time. Map
// keys are matched literally; a segment that parses as a non-negative
// integer indexes into an array. An undefined path resolves to nil.
func walk(current interface{}, segments []string) interface{} {
	for _, seg := range segments {
		if current == nil {
			return nil
		}
		switch v := current.(type) {
		case map[string]interface{}:
			current = v[seg]
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
	}
	return current
}

func render(value interface{}, quote bool) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		if quote {
			b, _ := json.Marshal(v)
			return string(b)
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
