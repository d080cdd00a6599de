package flowdag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumDef builds a float64 definition that adds its dependencies.
func sumDef(name string, deps ...string) NodeDefinition {
	params := make([]Parameter, 0, len(deps))
	for _, d := range deps {
		params = append(params, Param[float64](d))
	}
	return NodeDefinition{
		Name:   name,
		Type:   Returns[float64](),
		Params: params,
		Fn: func(kwargs map[string]any) (any, error) {
			total := 0.0
			for _, d := range deps {
				total += kwargs[d].(float64)
			}
			return total, nil
		},
	}
}

// constDef builds a float64 definition with no dependencies.
func constDef(name string, value float64) NodeDefinition {
	return NodeDefinition{
		Name: name,
		Type: Returns[float64](),
		Fn: func(map[string]any) (any, error) {
			return value, nil
		},
	}
}

// diamondModule builds base -> left/right -> top.
func diamondModule() *Module {
	return NewModule("diamond").
		Provide(constDef("base", 1)).
		Provide(sumDef("left", "base")).
		Provide(sumDef("right", "base")).
		Provide(sumDef("top", "left", "right"))
}

// TestNewFunctionGraph verifies basic graph construction from a module.
func TestNewFunctionGraph(t *testing.T) {
	g, err := NewFunctionGraph(nil, diamondModule())
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	n, ok := g.Node("top")
	require.True(t, ok)
	assert.Equal(t, []string{"left", "right"}, g.Dependencies("top"))
	assert.Equal(t, []string{"left", "right"}, g.Dependents("base"))
	assert.False(t, n.UserDefined())
}

// TestNewFunctionGraph_SynthesizesInputs verifies that parameters with no
// producing function become external input nodes.
func TestNewFunctionGraph_SynthesizesInputs(t *testing.T) {
	m := NewModule("m").Provide(sumDef("doubled", "raw"))
	g, err := NewFunctionGraph(nil, m)
	require.NoError(t, err)

	raw, ok := g.Node("raw")
	require.True(t, ok)
	assert.True(t, raw.UserDefined())
	assert.Equal(t, Returns[float64](), raw.Type())
	assert.Empty(t, raw.OriginatingFunctions())
}

// TestNewFunctionGraph_DuplicateDefinition verifies duplicate names fail
// construction with an aggregated error.
func TestNewFunctionGraph_DuplicateDefinition(t *testing.T) {
	m1 := NewModule("m1").Provide(constDef("x", 1))
	m2 := NewModule("m2").Provide(constDef("x", 2))

	_, err := NewFunctionGraph(nil, m1, m2)
	var consErr *GraphConstructionError
	require.ErrorAs(t, err, &consErr)
	require.Len(t, consErr.Issues, 1)
	assert.Contains(t, consErr.Issues[0], "x defined twice")
	assert.Contains(t, err.Error(), "1 graph construction errors")
}

// TestNewFunctionGraph_Replace verifies Replace intentionally redefines a
// node without a construction error.
func TestNewFunctionGraph_Replace(t *testing.T) {
	base := NewModule("base").Provide(constDef("x", 1))
	override := NewModule("override").Replace(constDef("x", 42))

	g, err := NewFunctionGraph(nil, base, override)
	require.NoError(t, err)

	memo, err := g.Execute(g.Nodes(), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 42.0, memo["x"])
}

// TestNewFunctionGraph_TypeConflict verifies a consumer declaring a type
// incompatible with its producer fails construction.
func TestNewFunctionGraph_TypeConflict(t *testing.T) {
	m := NewModule("m").
		Provide(NodeDefinition{
			Name: "count",
			Type: Returns[int](),
			Fn:   func(map[string]any) (any, error) { return 3, nil },
		}).
		Provide(NodeDefinition{
			Name:   "label",
			Type:   Returns[string](),
			Params: []Parameter{Param[string]("count")},
			Fn:     func(kwargs map[string]any) (any, error) { return kwargs["count"].(string), nil },
		})

	_, err := NewFunctionGraph(nil, m)
	var consErr *GraphConstructionError
	require.ErrorAs(t, err, &consErr)
	assert.Contains(t, consErr.Issues[0], "label wants input count")
}

// TestNewFunctionGraph_ConflictingInputTypes verifies two consumers
// declaring one external input with different types fail construction.
func TestNewFunctionGraph_ConflictingInputTypes(t *testing.T) {
	m := NewModule("m").
		Provide(NodeDefinition{
			Name:   "a",
			Type:   Returns[int](),
			Params: []Parameter{Param[int]("shared")},
			Fn:     func(kwargs map[string]any) (any, error) { return kwargs["shared"], nil },
		}).
		Provide(NodeDefinition{
			Name:   "b",
			Type:   Returns[string](),
			Params: []Parameter{Param[string]("shared")},
			Fn:     func(kwargs map[string]any) (any, error) { return kwargs["shared"], nil },
		})

	_, err := NewFunctionGraph(nil, m)
	var consErr *GraphConstructionError
	require.ErrorAs(t, err, &consErr)
	require.Len(t, consErr.Issues, 1)
	assert.Contains(t, consErr.Issues[0], "input shared declared with conflicting types")
}

// TestNewFunctionGraph_AggregatesSortedIssues verifies every construction
// problem is reported at once, sorted.
func TestNewFunctionGraph_AggregatesSortedIssues(t *testing.T) {
	m1 := NewModule("m1").Provide(constDef("dup", 1))
	m2 := NewModule("m2").
		Provide(constDef("dup", 2)).
		Provide(NodeDefinition{
			Name:   "zz",
			Type:   Returns[string](),
			Params: []Parameter{Param[string]("dup")},
			Fn:     func(kwargs map[string]any) (any, error) { return kwargs["dup"], nil },
		})

	_, err := NewFunctionGraph(nil, m1, m2)
	var consErr *GraphConstructionError
	require.ErrorAs(t, err, &consErr)
	require.Len(t, consErr.Issues, 2)
	assert.Less(t, consErr.Issues[0], consErr.Issues[1])
}

// TestNewFunctionGraph_WhenPredicate verifies config predicates shape the
// graph: rejected definitions are simply absent.
func TestNewFunctionGraph_WhenPredicate(t *testing.T) {
	m := NewModule("m").
		Provide(NodeDefinition{
			Name: "source",
			Type: Returns[float64](),
			When: func(config map[string]any) bool { return config["region"] == "eu" },
			Fn:   func(map[string]any) (any, error) { return 1.0, nil },
		}).
		Provide(NodeDefinition{
			Name: "source",
			Type: Returns[float64](),
			When: func(config map[string]any) bool { return config["region"] == "us" },
			Fn:   func(map[string]any) (any, error) { return 2.0, nil },
		})

	eu, err := NewFunctionGraph(map[string]any{"region": "eu"}, m)
	require.NoError(t, err)
	memo, err := eu.Execute(eu.Nodes(), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, memo["source"])

	us, err := NewFunctionGraph(map[string]any{"region": "us"}, m)
	require.NoError(t, err)
	memo, err = us.Execute(us.Nodes(), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, memo["source"])
}

// TestWithNodes verifies graph extension returns a new graph and leaves
// the original untouched.
func TestWithNodes(t *testing.T) {
	g, err := NewFunctionGraph(nil, diamondModule())
	require.NoError(t, err)

	extra := NewNode("extra", Returns[float64](),
		func(kwargs map[string]any) (any, error) { return kwargs["top"].(float64) + 1, nil },
		[]Parameter{Param[float64]("top")}, nil)

	extended, err := g.WithNodes(extra)
	require.NoError(t, err)
	assert.Equal(t, 5, extended.Len())
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"extra"}, extended.Dependents("top"))
	assert.Empty(t, g.Dependents("top"))
}

// TestWithNodes_Collision verifies extension rejects existing names.
func TestWithNodes_Collision(t *testing.T) {
	g, err := NewFunctionGraph(nil, diamondModule())
	require.NoError(t, err)

	dup := NewNode("top", Returns[float64](),
		func(map[string]any) (any, error) { return 0.0, nil }, nil, nil)

	_, err = g.WithNodes(dup)
	var consErr *GraphConstructionError
	require.ErrorAs(t, err, &consErr)
	assert.Contains(t, consErr.Issues[0], "top already exists")
}

// TestModule_ProvidePanics verifies builder misuse panics with clear
// messages.
func TestModule_ProvidePanics(t *testing.T) {
	assert.PanicsWithValue(t, "flowdag: module name cannot be empty", func() {
		NewModule("")
	})
	assert.PanicsWithValue(t, "flowdag: node name cannot be empty", func() {
		NewModule("m").Provide(NodeDefinition{Type: Returns[int]()})
	})
	assert.PanicsWithValue(t, "flowdag: node bad has no output type", func() {
		NewModule("m").Provide(NodeDefinition{
			Name: "bad",
			Fn:   func(map[string]any) (any, error) { return nil, nil },
		})
	})
	assert.PanicsWithValue(t, "flowdag: node bad has no function", func() {
		NewModule("m").Provide(NodeDefinition{Name: "bad", Type: Returns[int]()})
	})
}

// TestNode_Accessors verifies tag and parameter accessors return copies
// and sorted views.
func TestNode_Accessors(t *testing.T) {
	n := NewNode("n", Returns[int](), func(map[string]any) (any, error) { return 0, nil },
		[]Parameter{Param[int]("b"), OptionalParam[int]("a")},
		map[string]string{"team": "data"}, "m.n")

	params := n.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "a", params[0].Name)
	assert.Equal(t, Optional, params[0].Dependency)
	assert.Equal(t, "b", params[1].Name)

	v, ok := n.Tag("team")
	require.True(t, ok)
	assert.Equal(t, "data", v)

	tags := n.Tags()
	tags["team"] = "mutated"
	v, _ = n.Tag("team")
	assert.Equal(t, "data", v)

	assert.Equal(t, []string{"m.n"}, n.OriginatingFunctions())
}
