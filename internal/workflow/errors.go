package workflow

import "errors"

// ErrNotFound is returned when a workflow or execution lookup finds no
// row.
var ErrNotFound = errors.New("workflow: not found")

// ErrNoPendingExecution signals an empty queue to ClaimNextPending
// callers; it is not an error condition, only a sentinel the Queue
// Processor tests against.
var ErrNoPendingExecution = errors.New("workflow: no pending execution")

// ErrInvalidTransition is returned when a requested execution status
// transition violates the monotonic pending->running->{completed,failed}
// lifecycle.
var ErrInvalidTransition = errors.New("workflow: invalid execution status transition")

// ValidationError reports a missing or malformed input field. No code
// in this repository constructs it; the API's 400 responses come from
// the handlers' own input checks.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// GraphError reports a structural problem with a workflow's graph,
// such as a cycle. Fatal for the execution that discovers it.
type GraphError struct {
	Message string
}

func (e *GraphError) Error() string { return e.Message }

// StoreError wraps an underlying persistence failure so callers can
// distinguish it from domain errors without inspecting driver types.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "workflow: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
