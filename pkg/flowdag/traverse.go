package flowdag

import (
	"fmt"
	"sort"
)

// UpstreamNodes computes the minimal node set that must execute to produce
// the requested names: a reverse reachability walk along dependency edges,
// pruned at any name present in overrides. An override short-circuits its
// entire upstream subtree; nodes feeding only an overridden node are
// excluded unless something else still needs them.
//
// A name present in runtime inputs keeps its node in the result (it still
// needs validation) but stops the walk there: its upstream is not needed.
//
// Returns the transform-node set and the user-defined (external input)
// subset separately, since the latter needs input validation. Both are
// sorted by name. Requesting an unknown name is an error.
func (g *FunctionGraph) UpstreamNodes(finalVars []string, inputs, overrides map[string]any) (nodes, userNodes []*Node, err error) {
	for _, name := range finalVars {
		if _, ok := g.nodes[name]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
		}
	}

	visited := make(map[string]bool)
	stack := append([]string(nil), finalVars...)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[name] {
			continue
		}
		if _, overridden := overrides[name]; overridden {
			// The override value stands in for this node and everything
			// exclusively upstream of it.
			continue
		}
		visited[name] = true
		if _, supplied := inputs[name]; supplied {
			continue
		}
		stack = append(stack, g.dependencies[name]...)
	}

	for _, name := range sortedKeys(visited) {
		n := g.nodes[name]
		if n.userDefined {
			userNodes = append(userNodes, n)
		} else {
			nodes = append(nodes, n)
		}
	}
	return nodes, userNodes, nil
}

// DownstreamNodes computes forward reachability from the given names,
// inclusive, sorted by name. Requesting an unknown name is an error.
func (g *FunctionGraph) DownstreamNodes(names ...string) ([]*Node, error) {
	for _, name := range names {
		if _, ok := g.nodes[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
		}
	}

	visited := make(map[string]bool)
	stack := append([]string(nil), names...)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[name] {
			continue
		}
		visited[name] = true
		stack = append(stack, g.dependents[name]...)
	}

	out := make([]*Node, 0, len(visited))
	for _, name := range sortedKeys(visited) {
		out = append(out, g.nodes[name])
	}
	return out, nil
}

// NodesBetween returns the nodes lying on any path from upstream to
// downstream, inclusive of both endpoints. The result is unsorted set
// semantics rendered as a name-sorted slice; it is empty when no path
// exists. Unknown endpoint names are an error.
//
// A node is on a path iff it is reachable from upstream and downstream is
// reachable from it, so the result is the intersection of the forward
// closure of upstream and the backward closure of downstream.
func (g *FunctionGraph) NodesBetween(upstream, downstream string) ([]*Node, error) {
	if _, ok := g.nodes[upstream]; !ok {
		return nil, fmt.Errorf("%w: upstream %s", ErrUnknownNode, upstream)
	}
	if _, ok := g.nodes[downstream]; !ok {
		return nil, fmt.Errorf("%w: downstream %s", ErrUnknownNode, downstream)
	}

	forward, err := g.DownstreamNodes(upstream)
	if err != nil {
		return nil, err
	}
	// Fold the user-defined subset back in so an input endpoint still
	// counts as being on the path.
	backward, backUser, err := g.UpstreamNodes([]string{downstream}, nil, nil)
	if err != nil {
		return nil, err
	}

	inBackward := make(map[string]bool, len(backward)+len(backUser))
	for _, n := range backward {
		inBackward[n.name] = true
	}
	for _, n := range backUser {
		inBackward[n.name] = true
	}

	var out []*Node
	for _, n := range forward {
		if inBackward[n.name] {
			out = append(out, n)
		}
	}
	return out, nil
}

// HasCycles reports whether the subgraph induced by the given nodes
// contains a dependency cycle, using depth-first search with three-color
// marking. Edges leaving the subset are ignored.
func (g *FunctionGraph) HasCycles(subset []*Node) bool {
	return g.findCycle(subset) != nil
}

// CheckCycles returns a *CycleError naming the cycle members if the
// subgraph induced by the given nodes contains one, and nil otherwise.
func (g *FunctionGraph) CheckCycles(subset []*Node) error {
	if cycle := g.findCycle(subset); cycle != nil {
		return &CycleError{Nodes: cycle}
	}
	return nil
}

func (g *FunctionGraph) findCycle(subset []*Node) []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	inSubset := make(map[string]bool, len(subset))
	for _, n := range subset {
		inSubset[n.name] = true
	}
	colors := make(map[string]int, len(subset))

	var path []string
	var found []string
	var dfs func(name string) bool
	dfs = func(name string) bool {
		colors[name] = gray
		path = append(path, name)
		for _, dep := range g.dependencies[name] {
			if !inSubset[dep] {
				continue
			}
			switch colors[dep] {
			case gray:
				// Back edge: slice the current path from the repeat.
				for i, p := range path {
					if p == dep {
						found = append(append([]string(nil), path[i:]...), dep)
						return true
					}
				}
				found = []string{dep, name, dep}
				return true
			case white:
				if dfs(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		colors[name] = black
		return false
	}

	names := make([]string, 0, len(subset))
	for _, n := range subset {
		names = append(names, n.name)
	}
	sort.Strings(names)
	for _, name := range names {
		if colors[name] == white && dfs(name) {
			return found
		}
	}
	return nil
}
