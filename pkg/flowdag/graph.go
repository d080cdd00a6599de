package flowdag

import (
	"fmt"
	"reflect"
	"sort"
)

// FunctionGraph owns the full node index plus the static config map used
// to resolve config-backed inputs.
//
// A FunctionGraph is immutable once built and safe for concurrent use.
// "Modification" (adding materializer nodes, for example) goes through
// WithNodes, which returns a new graph value.
//
// Dependency edges are kept as adjacency lists of names over the node
// index, so traversal never follows object cross-references and the
// dependencies/dependents relation stays symmetric by construction.
type FunctionGraph struct {
	nodes        map[string]*Node
	dependencies map[string][]string // node name -> sorted producer names
	dependents   map[string][]string // node name -> sorted consumer names
	config       map[string]any
}

// NewFunctionGraph builds a graph from the node definitions contributed by
// the given modules, resolving every declared parameter to a sibling node,
// a config entry, or a synthesized user-defined input node.
//
// Definitions whose When predicate rejects the config are skipped, so the
// same modules can produce different graph shapes per configuration.
//
// All construction problems are gathered, sorted, and returned together as
// a single *GraphConstructionError:
//   - two definitions produce the same name without an explicit Replace
//   - a parameter's declared type conflicts with its producer's output type
//   - two consumers declare the same external input with different types
func NewFunctionGraph(config map[string]any, modules ...*Module) (*FunctionGraph, error) {
	if config == nil {
		config = map[string]any{}
	}

	var issues []string
	nodes := make(map[string]*Node)

	for _, m := range modules {
		for _, def := range m.defs {
			if def.When != nil && !def.When(config) {
				continue
			}
			origin := m.name + "." + def.Name
			candidate := NewNode(def.Name, def.Type, def.Fn, def.Params, def.Tags, origin)
			existing, ok := nodes[def.Name]
			if ok && !m.replaced[def.Name] {
				if existing.signature() != candidate.signature() {
					issues = append(issues, fmt.Sprintf(
						"node %s defined twice with incompatible signatures: %s vs %s (origins: %v, %v)",
						def.Name, existing.signature(), candidate.signature(),
						existing.origins, candidate.origins))
				} else {
					issues = append(issues, fmt.Sprintf(
						"node %s defined twice (origins: %v, %v); use Replace to redefine intentionally",
						def.Name, existing.origins, candidate.origins))
				}
				continue
			}
			nodes[def.Name] = candidate
		}
	}

	// Synthesize a user-defined node for every parameter with no producing
	// function. Its value must arrive through config or runtime inputs.
	inputTypes := make(map[string]reflect.Type)
	for _, name := range sortedKeys(nodes) {
		n := nodes[name]
		for _, p := range n.Parameters() {
			if producer, ok := nodes[p.Name]; ok {
				if !producer.userDefined && !typeSatisfies(p.Type, producer.typ) {
					issues = append(issues, fmt.Sprintf(
						"node %s wants input %s as %v but node %s produces %v",
						n.name, p.Name, p.Type, producer.name, producer.typ))
				}
				continue
			}
			if prev, seen := inputTypes[p.Name]; seen {
				if prev != p.Type {
					issues = append(issues, fmt.Sprintf(
						"input %s declared with conflicting types: %v vs %v",
						p.Name, prev, p.Type))
				}
				continue
			}
			inputTypes[p.Name] = p.Type
		}
	}
	for name, typ := range inputTypes {
		nodes[name] = newInputNode(name, typ)
	}

	if len(issues) > 0 {
		sort.Strings(issues)
		return nil, &GraphConstructionError{Issues: issues}
	}

	g := &FunctionGraph{nodes: nodes, config: config}
	g.rebuildAdjacency()
	return g, nil
}

// WithNodes returns a new graph that is the union of this graph's nodes
// and the given extras, sharing the same config. Name collisions are
// rejected rather than silently overwritten.
func (g *FunctionGraph) WithNodes(extra ...*Node) (*FunctionGraph, error) {
	var issues []string
	nodes := make(map[string]*Node, len(g.nodes)+len(extra))
	for name, n := range g.nodes {
		nodes[name] = n
	}
	for _, n := range extra {
		if _, exists := nodes[n.name]; exists {
			issues = append(issues, fmt.Sprintf("node %s already exists in graph", n.name))
			continue
		}
		nodes[n.name] = n
	}
	if len(issues) > 0 {
		sort.Strings(issues)
		return nil, &GraphConstructionError{Issues: issues}
	}

	out := &FunctionGraph{nodes: nodes, config: g.config}
	out.rebuildAdjacency()
	return out, nil
}

// rebuildAdjacency derives the dependency and dependent name lists from
// each node's parameter declarations. Parameters that name no node in the
// graph resolve to nothing here; validation catches unsatisfied ones.
func (g *FunctionGraph) rebuildAdjacency() {
	g.dependencies = make(map[string][]string, len(g.nodes))
	g.dependents = make(map[string][]string, len(g.nodes))
	for _, name := range sortedKeys(g.nodes) {
		n := g.nodes[name]
		for _, p := range n.Parameters() {
			if _, ok := g.nodes[p.Name]; !ok {
				continue
			}
			g.dependencies[name] = append(g.dependencies[name], p.Name)
			g.dependents[p.Name] = append(g.dependents[p.Name], name)
		}
	}
	for name := range g.dependencies {
		sort.Strings(g.dependencies[name])
	}
}

// Node returns the node with the given name.
func (g *FunctionGraph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns all nodes, sorted by name.
func (g *FunctionGraph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, name := range sortedKeys(g.nodes) {
		out = append(out, g.nodes[name])
	}
	return out
}

// Len returns the number of nodes in the graph.
func (g *FunctionGraph) Len() int { return len(g.nodes) }

// Config returns the graph's static configuration map.
// The returned map must not be modified.
func (g *FunctionGraph) Config() map[string]any { return g.config }

// Dependencies returns the names of the nodes the given node consumes,
// sorted. Nil for unknown names and for nodes with no dependencies.
func (g *FunctionGraph) Dependencies(name string) []string {
	return g.dependencies[name]
}

// Dependents returns the names of the nodes that consume the given node,
// sorted. Nil for unknown names and for leaves.
func (g *FunctionGraph) Dependents(name string) []string {
	return g.dependents[name]
}

// typeSatisfies reports whether a value of type produced can be used where
// want is declared. Interface targets accept implementations; the empty
// interface accepts anything.
func typeSatisfies(want, produced reflect.Type) bool {
	if want == nil || produced == nil {
		return true
	}
	if produced == want {
		return true
	}
	if want.Kind() == reflect.Interface {
		return produced.Implements(want)
	}
	return produced.AssignableTo(want)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
