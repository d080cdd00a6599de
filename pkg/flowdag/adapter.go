package flowdag

import (
	"reflect"
	"runtime/debug"
)

// GraphAdapter is the pluggable strategy that separates the graph model
// from how nodes are invoked and how results are assembled. Caching,
// single-machine execution, and task-based execution all share the same
// graph; they differ only in their adapter.
type GraphAdapter interface {
	// CheckInputType validates a runtime input value against a node's
	// declared type.
	CheckInputType(expected reflect.Type, value any) bool

	// ExecuteNode invokes a node's callable with its resolved keyword
	// arguments. Implementations may intercept: cache, short-circuit,
	// instrument.
	ExecuteNode(n *Node, kwargs map[string]any) (any, error)

	// BuildResult assembles the requested-output mapping into whatever
	// shape the caller wants.
	BuildResult(outputs map[string]any) (any, error)
}

// ResultBuilder assembles the final requested-output mapping. It is the
// result half of a GraphAdapter, pluggable on its own for the task-based
// execution path and for materializer join nodes.
type ResultBuilder interface {
	BuildResult(outputs map[string]any) (any, error)
}

// DictResult returns the requested outputs as a plain map.
type DictResult struct{}

// BuildResult implements ResultBuilder.
func (DictResult) BuildResult(outputs map[string]any) (any, error) {
	out := make(map[string]any, len(outputs))
	for k, v := range outputs {
		out[k] = v
	}
	return out, nil
}

// DefaultAdapter is the default single-machine strategy: reflect-based
// type checking, direct invocation with panic recovery, and a pluggable
// result builder (DictResult when unset).
type DefaultAdapter struct {
	// Builder assembles the final result. Defaults to DictResult.
	Builder ResultBuilder
}

// CheckInputType implements GraphAdapter. A nil value passes for any type
// that can hold nil; otherwise the value's dynamic type must satisfy the
// declared one.
func (DefaultAdapter) CheckInputType(expected reflect.Type, value any) bool {
	if expected == nil {
		return true
	}
	if value == nil {
		switch expected.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return true
		}
		return false
	}
	return typeSatisfies(expected, reflect.TypeOf(value))
}

// ExecuteNode implements GraphAdapter: it invokes the callable directly,
// converting panics into *NodePanicError with the stack trace.
func (DefaultAdapter) ExecuteNode(n *Node, kwargs map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &NodePanicError{
				Node:  n.name,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()
	return n.callable(kwargs)
}

// BuildResult implements GraphAdapter, delegating to the configured
// result builder.
func (a DefaultAdapter) BuildResult(outputs map[string]any) (any, error) {
	builder := a.Builder
	if builder == nil {
		builder = DictResult{}
	}
	return builder.BuildResult(outputs)
}
