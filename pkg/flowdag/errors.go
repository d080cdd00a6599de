package flowdag

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph and cache lookups.
var (
	// ErrUnknownNode indicates a requested name is not in the graph.
	ErrUnknownNode = errors.New("node not found in graph")

	// ErrMissingInput indicates a required external input had no value in
	// config or runtime inputs.
	ErrMissingInput = errors.New("required input not provided")

	// ErrResultNotComputed indicates a result cache read for a name that
	// was never written. Should not occur if graph validation passed.
	ErrResultNotComputed = errors.New("result not computed")

	// ErrDuplicateWrite indicates a second result cache write for the same
	// name within one run. The cache is write-once per name by design; a
	// grouping strategy that triggers this is buggy.
	ErrDuplicateWrite = errors.New("result already written")

	// ErrNoTransport indicates a remote executor was used without a
	// transport configured.
	ErrNoTransport = errors.New("remote executor has no transport")

	// ErrNoProgress indicates the scheduler found no runnable, running, or
	// failed task while non-terminal tasks remain. Indicates a bug in the
	// task plan.
	ErrNoProgress = errors.New("no task can make progress")
)

// GraphConstructionError reports every problem found while building a
// function graph: duplicate or incompatible node definitions, illegal
// redefinitions, and conflicting input declarations. Issues are sorted so
// the message is stable across runs.
type GraphConstructionError struct {
	// Issues is the sorted list of problems found.
	Issues []string
}

// Error implements the error interface.
func (e *GraphConstructionError) Error() string {
	return fmt.Sprintf("%d graph construction errors:\n  %s",
		len(e.Issues), strings.Join(e.Issues, "\n  "))
}

// ValidationError aggregates every runtime-input violation found before
// execution: missing required inputs and declared-type mismatches. All
// violations are gathered and sorted; nothing executes on invalid input.
type ValidationError struct {
	// Issues is the sorted list of violations.
	Issues []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d validation errors:\n  %s",
		len(e.Issues), strings.Join(e.Issues, "\n  "))
}

// CycleError indicates a requested node subset contains a dependency
// cycle. Well-formed construction cannot produce one, but config branches
// and graph extensions are checked defensively.
type CycleError struct {
	// Nodes are members of the detected cycle, in walk order.
	Nodes []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected through nodes: %s", strings.Join(e.Nodes, " -> "))
}

// NodeExecutionError wraps a failure raised by a node's callable. The
// original error is preserved for errors.Is/As.
type NodeExecutionError struct {
	// Node is the name of the node that failed.
	Node string
	// Err is the underlying error from the callable.
	Err error
}

// Error implements the error interface.
func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// NodePanicError captures a panic raised inside a node's callable,
// including the stack trace at the point of panic.
type NodePanicError struct {
	// Node is the name of the node that panicked.
	Node string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace captured in the recovering goroutine.
	Stack string
}

// Error implements the error interface.
func (e *NodePanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}

// TaskFailureError is the run-level failure surfaced by the scheduler
// once a failed task makes further progress impossible.
type TaskFailureError struct {
	// TaskID identifies the failed task.
	TaskID string
	// Err is the failure the task executor reported.
	Err error
}

// Error implements the error interface.
func (e *TaskFailureError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TaskFailureError) Unwrap() error {
	return e.Err
}
