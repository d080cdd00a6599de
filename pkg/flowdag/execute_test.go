package flowdag

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDef wraps a definition so the test can assert how many times
// its function ran.
func countingDef(def NodeDefinition, counter *atomic.Int64) NodeDefinition {
	inner := def.Fn
	def.Fn = func(kwargs map[string]any) (any, error) {
		counter.Add(1)
		return inner(kwargs)
	}
	return def
}

// TestExecute_Diamond verifies depth-first execution computes a shared
// dependency exactly once.
func TestExecute_Diamond(t *testing.T) {
	var baseCalls atomic.Int64
	m := NewModule("diamond").
		Provide(countingDef(constDef("base", 1), &baseCalls)).
		Provide(sumDef("left", "base")).
		Provide(sumDef("right", "base")).
		Provide(sumDef("top", "left", "right"))
	g, err := NewFunctionGraph(nil, m)
	require.NoError(t, err)

	nodes, _, err := g.UpstreamNodes([]string{"top"}, nil, nil)
	require.NoError(t, err)
	memo, err := g.Execute(nodes, nil, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2.0, memo["top"])
	assert.Equal(t, int64(1), baseCalls.Load())
}

// TestExecute_OverrideSkipsUpstream verifies an overridden node's
// function and its exclusive upstream never run, while downstream
// consumers see the override value.
func TestExecute_OverrideSkipsUpstream(t *testing.T) {
	var xCalls, yCalls atomic.Int64
	m := NewModule("chain").
		Provide(countingDef(constDef("x", 1), &xCalls)).
		Provide(countingDef(sumDef("y", "x"), &yCalls)).
		Provide(NodeDefinition{
			Name:   "z",
			Type:   Returns[float64](),
			Params: []Parameter{Param[float64]("y")},
			Fn: func(kwargs map[string]any) (any, error) {
				return kwargs["y"].(float64) + 2, nil
			},
		})
	g, err := NewFunctionGraph(nil, m)
	require.NoError(t, err)

	overrides := map[string]any{"y": 100.0}
	nodes, _, err := g.UpstreamNodes([]string{"z"}, nil, overrides)
	require.NoError(t, err)
	memo, err := g.Execute(nodes, nil, overrides, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 102.0, memo["z"])
	assert.Equal(t, 100.0, memo["y"])
	assert.Equal(t, int64(0), xCalls.Load())
	assert.Equal(t, int64(0), yCalls.Load())
}

// TestExecute_InputsResolveUserNodes verifies external inputs come from
// the inputs map first, then config.
func TestExecute_InputsResolveUserNodes(t *testing.T) {
	m := NewModule("m").Provide(sumDef("out", "raw"))
	g, err := NewFunctionGraph(map[string]any{"raw": 1.0}, m)
	require.NoError(t, err)

	nodes, _, err := g.UpstreamNodes([]string{"out"}, nil, nil)
	require.NoError(t, err)

	memo, err := g.Execute(nodes, nil, nil, map[string]any{"raw": 5.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, memo["out"])

	memo, err = g.Execute(nodes, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, memo["out"])
}

// TestExecute_MissingInput verifies an unprovided required input fails
// with a node-scoped error.
func TestExecute_MissingInput(t *testing.T) {
	m := NewModule("m").Provide(sumDef("out", "raw"))
	g, err := NewFunctionGraph(nil, m)
	require.NoError(t, err)

	nodes, _, err := g.UpstreamNodes([]string{"out"}, nil, nil)
	require.NoError(t, err)

	_, err = g.Execute(nodes, nil, nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingInput)
	var nodeErr *NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "raw", nodeErr.Node)
}

// TestExecute_WrapsFailureOnce verifies a callable error is wrapped in
// exactly one NodeExecutionError naming the failing node.
func TestExecute_WrapsFailureOnce(t *testing.T) {
	boom := errors.New("boom")
	m := NewModule("m").
		Provide(NodeDefinition{
			Name: "bad",
			Type: Returns[int](),
			Fn:   func(map[string]any) (any, error) { return nil, boom },
		}).
		Provide(NodeDefinition{
			Name:   "consumer",
			Type:   Returns[int](),
			Params: []Parameter{Param[int]("bad")},
			Fn:     func(kwargs map[string]any) (any, error) { return kwargs["bad"], nil },
		})
	g, err := NewFunctionGraph(nil, m)
	require.NoError(t, err)

	nodes, _, err := g.UpstreamNodes([]string{"consumer"}, nil, nil)
	require.NoError(t, err)

	_, err = g.Execute(nodes, nil, nil, nil, nil)
	var nodeErr *NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "bad", nodeErr.Node)
	assert.ErrorIs(t, err, boom)
	// The consumer's propagation must not add a second wrapper.
	var inner *NodeExecutionError
	assert.False(t, errors.As(nodeErr.Err, &inner))
}

// TestExecute_PanicRecovery verifies a panicking callable surfaces as
// NodePanicError with a stack trace.
func TestExecute_PanicRecovery(t *testing.T) {
	m := NewModule("m").Provide(NodeDefinition{
		Name: "explode",
		Type: Returns[int](),
		Fn:   func(map[string]any) (any, error) { panic("kaboom") },
	})
	g, err := NewFunctionGraph(nil, m)
	require.NoError(t, err)

	_, err = g.Execute(g.Nodes(), nil, nil, nil, nil)
	var panicErr *NodePanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "explode", panicErr.Node)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

// TestExecute_PrehydratedMemo verifies caller-provided memo values are
// reused instead of recomputed.
func TestExecute_PrehydratedMemo(t *testing.T) {
	var baseCalls atomic.Int64
	m := NewModule("m").
		Provide(countingDef(constDef("base", 1), &baseCalls)).
		Provide(sumDef("out", "base"))
	g, err := NewFunctionGraph(nil, m)
	require.NoError(t, err)

	nodes, _, err := g.UpstreamNodes([]string{"out"}, nil, nil)
	require.NoError(t, err)

	memo := map[string]any{"base": 7.0}
	memo, err = g.Execute(nodes, memo, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 7.0, memo["out"])
	assert.Equal(t, int64(0), baseCalls.Load())
}
