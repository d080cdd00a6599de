package flowdag

import (
	"errors"
	"fmt"
)

// Execute runs the given transform nodes depth-first with memoization and
// returns the memo containing every computed value. Each node executes at
// most once per call: a diamond dependency is computed once and read twice.
//
// overrides seed the memo before anything runs, so an overridden node's
// callable is never invoked and nothing exclusively upstream of it
// executes. User-defined nodes resolve from inputs first, then from the
// graph config.
//
// memo may be nil; callers that want to pre-hydrate values (a warm cache,
// a prior run's partial results) pass their own map, which is mutated in
// place and also returned.
func (g *FunctionGraph) Execute(nodes []*Node, memo, overrides, inputs map[string]any, adapter GraphAdapter) (map[string]any, error) {
	if memo == nil {
		memo = make(map[string]any)
	}
	if adapter == nil {
		adapter = DefaultAdapter{}
	}
	for k, v := range overrides {
		memo[k] = v
	}

	var resolve func(n *Node) (any, error)
	resolve = func(n *Node) (any, error) {
		if v, done := memo[n.name]; done {
			return v, nil
		}
		if n.userDefined {
			if v, ok := inputs[n.name]; ok {
				memo[n.name] = v
				return v, nil
			}
			if v, ok := g.config[n.name]; ok {
				memo[n.name] = v
				return v, nil
			}
			return nil, &NodeExecutionError{Node: n.name, Err: ErrMissingInput}
		}

		kwargs := make(map[string]any, len(n.params))
		for _, p := range n.Parameters() {
			dep, ok := g.nodes[p.Name]
			if !ok {
				if p.Dependency == Optional {
					continue
				}
				return nil, &NodeExecutionError{
					Node: n.name,
					Err:  fmt.Errorf("%w: dependency %s", ErrUnknownNode, p.Name),
				}
			}
			v, err := resolve(dep)
			if err != nil {
				if p.Dependency == Optional && !isExecutionFailure(err) {
					continue
				}
				return nil, err
			}
			kwargs[p.Name] = v
		}

		v, err := adapter.ExecuteNode(n, kwargs)
		if err != nil {
			return nil, wrapNodeError(n.name, err)
		}
		memo[n.name] = v
		return v, nil
	}

	for _, n := range nodes {
		if _, err := resolve(n); err != nil {
			return memo, err
		}
	}
	return memo, nil
}

// isExecutionFailure distinguishes a node that ran and failed from a node
// whose input simply was not provided. Optional dependencies tolerate the
// latter, never the former.
func isExecutionFailure(err error) bool {
	var panicErr *NodePanicError
	if errors.As(err, &panicErr) {
		return true
	}
	if errors.Is(err, ErrUnknownNode) || errors.Is(err, ErrMissingInput) {
		return false
	}
	return true
}
