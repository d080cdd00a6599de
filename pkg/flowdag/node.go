package flowdag

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// DependencyType describes how a node consumes one of its inputs.
type DependencyType int

const (
	// Required means the input has no default and must be resolvable to a
	// sibling node, a config entry, or a runtime input.
	Required DependencyType = iota

	// Optional means the input has a default; validation will not complain
	// if nothing provides it.
	Optional
)

// String returns a human-readable dependency kind.
func (d DependencyType) String() string {
	if d == Optional {
		return "optional"
	}
	return "required"
}

// Parameter declares one named input of a node.
type Parameter struct {
	// Name is the input name; it resolves against sibling node names,
	// config keys, and runtime inputs, in that order of preference.
	Name string
	// Type is the declared input type.
	Type reflect.Type
	// Dependency is whether the input is required or optional.
	Dependency DependencyType
}

// Callable is the signature for all node functions.
// It is invoked with exactly the keyword arguments named by the node's
// resolved dependencies and returns the node's value.
//
// Side effects are permitted (a "save" node does I/O and returns a lineage
// token); the engine treats every node identically regardless of purity.
type Callable func(kwargs map[string]any) (any, error)

// Node is a named unit of computation in a function graph.
//
// A Node is immutable after graph construction. Its dependency edges live
// in the graph's adjacency index, not on the node itself, so traversal
// never chases object cross-references.
type Node struct {
	name        string
	typ         reflect.Type
	tags        map[string]string
	callable    Callable
	userDefined bool
	params      map[string]Parameter
	origins     []string
}

// NewNode creates a node with an explicit definition. This is the
// registration-time constructor used by modules and by graph extensions
// such as materializers; most callers go through Module.Provide instead.
func NewNode(name string, typ reflect.Type, fn Callable, params []Parameter, tags map[string]string, origins ...string) *Node {
	n := &Node{
		name:     name,
		typ:      typ,
		callable: fn,
		tags:     make(map[string]string, len(tags)),
		params:   make(map[string]Parameter, len(params)),
		origins:  append([]string(nil), origins...),
	}
	for k, v := range tags {
		n.tags[k] = v
	}
	for _, p := range params {
		n.params[p.Name] = p
	}
	return n
}

// newInputNode synthesizes a user-defined node for a parameter that no
// function produces. Its value must come from config or runtime inputs.
func newInputNode(name string, typ reflect.Type) *Node {
	return &Node{
		name:        name,
		typ:         typ,
		userDefined: true,
		tags:        map[string]string{},
		params:      map[string]Parameter{},
	}
}

// Name returns the node's unique name.
func (n *Node) Name() string { return n.name }

// Type returns the node's declared output type.
func (n *Node) Type() reflect.Type { return n.typ }

// UserDefined reports whether the node is an external input with no
// producing function.
func (n *Node) UserDefined() bool { return n.userDefined }

// Tag returns the value of a tag and whether it is set.
func (n *Node) Tag(key string) (string, bool) {
	v, ok := n.tags[key]
	return v, ok
}

// Tags returns a copy of the node's tags.
func (n *Node) Tags() map[string]string {
	out := make(map[string]string, len(n.tags))
	for k, v := range n.tags {
		out[k] = v
	}
	return out
}

// Parameters returns the node's declared inputs, sorted by name.
func (n *Node) Parameters() []Parameter {
	out := make([]Parameter, 0, len(n.params))
	for _, p := range n.params {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Parameter returns the declared input with the given name.
func (n *Node) Parameter(name string) (Parameter, bool) {
	p, ok := n.params[name]
	return p, ok
}

// OriginatingFunctions returns provenance for diagnostics: the module
// definitions this node came from. Empty for synthesized input nodes.
func (n *Node) OriginatingFunctions() []string {
	return append([]string(nil), n.origins...)
}

// signature renders the node's output type and parameter list; two
// definitions of the same name with different signatures conflict.
func (n *Node) signature() string {
	parts := make([]string, 0, len(n.params))
	for _, p := range n.Parameters() {
		parts = append(parts, fmt.Sprintf("%s %v %s", p.Name, p.Type, p.Dependency))
	}
	return fmt.Sprintf("(%s) %v", strings.Join(parts, ", "), n.typ)
}

// NodeDefinition is the explicit registration form of a node: the name,
// output type, parameter list with dependency kinds, and the function
// that computes it. This replaces source-language signature reflection
// with a declaration the graph builder can validate.
type NodeDefinition struct {
	// Name is the output name this definition produces.
	Name string
	// Type is the declared output type. Use Returns to build one.
	Type reflect.Type
	// Params declares the function's named inputs.
	Params []Parameter
	// Fn computes the value from the resolved inputs.
	Fn Callable
	// Tags attach string metadata (grouping hints, cache formats, ...).
	Tags map[string]string
	// When, if set, is a config predicate: the definition is only
	// included in graphs whose config satisfies it.
	When func(config map[string]any) bool
}

// Returns is a convenience for declaring a definition's output type.
func Returns[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Param declares a required input.
func Param[T any](name string) Parameter {
	return Parameter{Name: name, Type: Returns[T](), Dependency: Required}
}

// OptionalParam declares an input with a default, satisfied or not.
func OptionalParam[T any](name string) Parameter {
	return Parameter{Name: name, Type: Returns[T](), Dependency: Optional}
}

// Module is a named collection of node definitions, the unit a graph is
// built from. Modules are mutable builders and are NOT safe for concurrent
// use; build them in one goroutine, then hand them to NewFunctionGraph.
//
// Example:
//
//	m := flowdag.NewModule("revenue").
//	    Provide(flowdag.NodeDefinition{
//	        Name: "total",
//	        Type: flowdag.Returns[float64](),
//	        Params: []flowdag.Parameter{flowdag.Param[float64]("price"), flowdag.Param[int]("quantity")},
//	        Fn: func(kwargs map[string]any) (any, error) {
//	            return kwargs["price"].(float64) * float64(kwargs["quantity"].(int)), nil
//	        },
//	    })
type Module struct {
	name     string
	defs     []NodeDefinition
	replaced map[string]bool
}

// NewModule creates an empty module.
//
// Panics if name is empty or contains whitespace.
func NewModule(name string) *Module {
	if name == "" {
		panic("flowdag: module name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		panic("flowdag: module name cannot contain whitespace")
	}
	return &Module{name: name, replaced: make(map[string]bool)}
}

// Provide adds a node definition to the module.
// Returns the module for method chaining.
//
// Panics if:
//   - the definition's name is empty or contains whitespace
//   - the output type is nil
//   - the function is nil
func (m *Module) Provide(def NodeDefinition) *Module {
	if def.Name == "" {
		panic("flowdag: node name cannot be empty")
	}
	if strings.ContainsAny(def.Name, " \t\n\r") {
		panic("flowdag: node name cannot contain whitespace")
	}
	if def.Type == nil {
		panic(fmt.Sprintf("flowdag: node %s has no output type", def.Name))
	}
	if def.Fn == nil {
		panic(fmt.Sprintf("flowdag: node %s has no function", def.Name))
	}
	m.defs = append(m.defs, def)
	return m
}

// Replace adds a definition that intentionally redefines an existing node
// name. A Provide collision is a construction error; a Replace wins over
// whatever definition came before it.
func (m *Module) Replace(def NodeDefinition) *Module {
	m.Provide(def)
	m.replaced[def.Name] = true
	return m
}

// Name returns the module name, used as provenance on its nodes.
func (m *Module) Name() string { return m.name }
