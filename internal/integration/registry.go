package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loomwork/loom/internal/expression"
)

// Registry is a keyed catalog of Integration Descriptors. Unlike the
// process-wide singleton this package's ancestry once used, a Registry
// here is always constructed explicitly and passed by reference to
// whatever needs it (principally the Execution Engine) — there is no
// package-level instance and no ambient state.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]Descriptor
	logger *slog.Logger
}

// NewRegistry returns an empty Registry. Call Register to populate it.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{byID: make(map[string]Descriptor), logger: logger}
}

// Register adds a Descriptor, replacing any existing one with the same
// ID.
func (r *Registry) Register(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("integration: descriptor id must not be empty")
	}
	if d.Execute == nil {
		return fmt.Errorf("integration: descriptor %q has no executor", d.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.ID] = d
	return nil
}

// Unregister removes a Descriptor by ID.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Get returns the Descriptor for id, or false if unknown.
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// All returns every registered Descriptor, sorted by ID for stable
// listing.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory filters All() to one category.
func (r *Registry) ByCategory(cat Category) []Descriptor {
	var out []Descriptor
	for _, d := range r.All() {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// Search returns every Descriptor whose ID or Name contains the query,
// case-insensitively, matching the editor's lightweight filter box.
func (r *Registry) Search(query string) []Descriptor {
	needle := strings.ToLower(query)
	var out []Descriptor
	for _, d := range r.All() {
		if strings.Contains(strings.ToLower(d.ID), needle) || strings.Contains(strings.ToLower(d.Name), needle) {
			out = append(out, d)
		}
	}
	return out
}

// ByVersion filters All() to one version string.
func (r *Registry) ByVersion(version string) []Descriptor {
	var out []Descriptor
	for _, d := range r.All() {
		if d.Version == version {
			out = append(out, d)
		}
	}
	return out
}

// AuthRequired returns every Descriptor that declares an Auth
// descriptor.
func (r *Registry) AuthRequired() []Descriptor {
	var out []Descriptor
	for _, d := range r.All() {
		if d.Auth != nil {
			out = append(out, d)
		}
	}
	return out
}

// Stats summarizes the catalog by category, for the editor's palette.
func (r *Registry) Stats() map[Category]int {
	stats := map[Category]int{}
	for _, d := range r.All() {
		stats[d.Category]++
	}
	return stats
}

// ValidateConfig checks a decoded config map against id's Descriptor.
// If the Descriptor declares its own Validate, that result is
// authoritative. Otherwise every required key must be present and
// truthy, and each field's Validate callback (when set and the value
// is present) must not error.
func (r *Registry) ValidateConfig(id string, config map[string]interface{}) (bool, map[string]string) {
	d, ok := r.Get(id)
	if !ok {
		return false, map[string]string{"id": fmt.Sprintf("integration %q not found", id)}
	}
	if d.Validate != nil {
		return d.Validate(config)
	}

	errs := map[string]string{}
	for _, key := range d.Schema.Required {
		v, present := config[key]
		if !present || isZero(v) {
			errs[key] = "required"
		}
	}
	for _, field := range d.Schema.Fields {
		if field.Validate == nil {
			continue
		}
		v, present := config[field.Key]
		if !present {
			continue
		}
		if err := field.Validate(v); err != nil {
			errs[field.Key] = err.Error()
		}
	}
	return len(errs) == 0, errs
}

// ExecuteIntegration runs the five-step dispatch contract: resolve the
// descriptor, hydrate config against the live workflow context
// (quoting scalar substitutions only for branch_condition), time the
// executor call, convert a thrown error into a failed Result, and
// sanity-check the output schema before returning.
func (r *Registry) ExecuteIntegration(ctx context.Context, id string, config json.RawMessage, wfCtx *expression.Context) *Result {
	d, ok := r.Get(id)
	if !ok {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("Integration '%s' not found", id),
			Metadata: map[string]interface{}{
				"nodeType": "unknown",
			},
		}
	}

	quote := id == "branch_condition"
	hydratedRaw, err := expression.HydrateJSON(config, wfCtx, quote)
	if err != nil {
		return r.fail(d, fmt.Sprintf("failed to hydrate config: %s", err.Error()), 0)
	}
	var hydrated map[string]interface{}
	if len(hydratedRaw) > 0 {
		if err := json.Unmarshal(hydratedRaw, &hydrated); err != nil {
			return r.fail(d, fmt.Sprintf("hydrated config is not an object: %s", err.Error()), 0)
		}
	}
	if hydrated == nil {
		hydrated = map[string]interface{}{}
	}

	start := time.Now()
	result, err := r.invoke(ctx, d, hydrated, wfCtx)
	elapsed := time.Since(start)

	if err != nil {
		return r.fail(d, err.Error(), elapsed.Milliseconds())
	}
	if result == nil {
		return r.fail(d, "integration returned no result", elapsed.Milliseconds())
	}

	if result.Metadata == nil {
		result.Metadata = map[string]interface{}{}
	}
	result.Metadata["nodeType"] = string(d.Category)
	result.Metadata["subtype"] = d.ID
	result.Metadata["executionTime"] = elapsed.Milliseconds()

	if result.Success {
		if result.Data == nil {
			r.logger.Warn("integration succeeded with no data", "id", id)
		} else if _, ok := result.Data["timestamp"].(string); !ok {
			r.logger.Warn("integration result missing string timestamp", "id", id)
		}
	}
	return result
}

// invoke calls the executor, converting a panic into an error so a
// misbehaving integration can never take the Engine down with it.
func (r *Registry) invoke(ctx context.Context, d Descriptor, config map[string]interface{}, wfCtx *expression.Context) (result *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("integration %q panicked: %v", d.ID, p)
		}
	}()
	return d.Execute(ctx, config, wfCtx)
}

func (r *Registry) fail(d Descriptor, message string, elapsedMs int64) *Result {
	return &Result{
		Success: false,
		Error:   message,
		Metadata: map[string]interface{}{
			"nodeType":      string(d.Category),
			"subtype":       d.ID,
			"executionTime": elapsedMs,
		},
	}
}

func isZero(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	default:
		return false
	}
}
