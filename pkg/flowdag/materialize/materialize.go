package materialize

import (
	"fmt"

	"github.com/randalmurphal/flowdag/pkg/flowdag"
)

// KindTag marks materializer-generated nodes with their saver kind.
const KindTag = "materializer"

// Spec declares one output to persist: which nodes feed it, how they
// combine, and which saver writes the result.
type Spec struct {
	// ID names the save node added to the graph; the saved Metadata is
	// requestable under this name.
	ID string
	// Kind selects the saver factory from the registry.
	Kind string
	// Dependencies are the graph outputs to persist.
	Dependencies []string
	// Combine merges multiple dependencies into the value handed to the
	// saver. Defaults to DictResult. Ignored for a single dependency,
	// whose value is saved as-is.
	Combine flowdag.ResultBuilder
	// Params configure the saver factory.
	Params map[string]any
}

// joinNodeName is where a spec's combined value lives in the graph.
func joinNodeName(id string) string { return id + "_build_result" }

// Extend returns a new graph with the specs' save nodes (and join nodes,
// for multi-dependency specs) added. The input graph is not modified.
//
// Each save node is tagged "execution"="local" so task-based runs keep
// I/O on the scheduler's process, and carries KindTag for introspection.
func Extend(g *flowdag.FunctionGraph, reg *Registry, specs ...Spec) (*flowdag.FunctionGraph, error) {
	var added []*flowdag.Node
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("materializer spec has no ID")
		}
		if len(spec.Dependencies) == 0 {
			return nil, fmt.Errorf("materializer %s has no dependencies", spec.ID)
		}
		for _, dep := range spec.Dependencies {
			if _, ok := g.Node(dep); !ok {
				return nil, fmt.Errorf("materializer %s: %w: %s", spec.ID, flowdag.ErrUnknownNode, dep)
			}
		}

		params := make(map[string]any, len(spec.Params)+1)
		for k, v := range spec.Params {
			params[k] = v
		}
		params["id"] = spec.ID
		saver, err := reg.Build(spec.Kind, params)
		if err != nil {
			return nil, fmt.Errorf("materializer %s: %w", spec.ID, err)
		}

		saveInput := spec.Dependencies[0]
		if len(spec.Dependencies) > 1 {
			join := buildJoinNode(g, spec)
			added = append(added, join)
			saveInput = join.Name()
		}

		inputType := flowdag.Returns[any]()
		if n, ok := g.Node(saveInput); ok {
			inputType = n.Type()
		}
		save := flowdag.NewNode(
			spec.ID,
			flowdag.Returns[Metadata](),
			func(kwargs map[string]any) (any, error) {
				return saver.Save(kwargs[saveInput])
			},
			[]flowdag.Parameter{{Name: saveInput, Type: inputType, Dependency: flowdag.Required}},
			map[string]string{KindTag: spec.Kind, flowdag.ExecutionTag: "local"},
		)
		added = append(added, save)
	}
	return g.WithNodes(added...)
}

// buildJoinNode creates the node combining a spec's dependencies into one
// value for the saver.
func buildJoinNode(g *flowdag.FunctionGraph, spec Spec) *flowdag.Node {
	combine := spec.Combine
	if combine == nil {
		combine = flowdag.DictResult{}
	}
	params := make([]flowdag.Parameter, 0, len(spec.Dependencies))
	for _, dep := range spec.Dependencies {
		typ := flowdag.Returns[any]()
		if n, ok := g.Node(dep); ok {
			typ = n.Type()
		}
		params = append(params, flowdag.Parameter{Name: dep, Type: typ, Dependency: flowdag.Required})
	}
	return flowdag.NewNode(
		joinNodeName(spec.ID),
		flowdag.Returns[any](),
		func(kwargs map[string]any) (any, error) {
			return combine.BuildResult(kwargs)
		},
		params,
		map[string]string{KindTag: spec.Kind, flowdag.ExecutionTag: "local"},
	)
}

// Run extends the graph with the given specs, executes everything the
// save nodes need, and returns each spec's save Metadata keyed by ID.
// Partial failures abort the run; already-written outputs stay written.
func Run(g *flowdag.FunctionGraph, reg *Registry, specs []Spec, inputs, overrides map[string]any, adapter flowdag.GraphAdapter) (map[string]Metadata, error) {
	extended, err := Extend(g, reg, specs...)
	if err != nil {
		return nil, err
	}

	finalVars := make([]string, 0, len(specs))
	for _, spec := range specs {
		finalVars = append(finalVars, spec.ID)
	}
	nodes, _, err := extended.UpstreamNodes(finalVars, inputs, overrides)
	if err != nil {
		return nil, err
	}
	memo, err := extended.Execute(nodes, nil, overrides, inputs, adapter)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Metadata, len(specs))
	for _, spec := range specs {
		md, ok := memo[spec.ID].(Metadata)
		if !ok {
			return nil, fmt.Errorf("materializer %s: %w", spec.ID, flowdag.ErrResultNotComputed)
		}
		out[spec.ID] = md
	}
	return out, nil
}
