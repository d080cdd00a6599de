package benchmarks

import (
	"testing"

	"github.com/randalmurphal/flowdag/pkg/flowdag"
)

// noopDef produces a definition that does minimal work, to measure
// framework overhead.
func noopDef(name string, deps ...string) flowdag.NodeDefinition {
	params := make([]flowdag.Parameter, 0, len(deps))
	for _, dep := range deps {
		params = append(params, flowdag.Param[int](dep))
	}
	return flowdag.NodeDefinition{
		Name:   name,
		Type:   flowdag.Returns[int](),
		Params: params,
		Fn: func(map[string]any) (any, error) {
			return 0, nil
		},
	}
}

// BenchmarkNewFunctionGraph_10 builds a 10-node linear graph.
func BenchmarkNewFunctionGraph_10(b *testing.B) {
	m := linearModule(10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = flowdag.NewFunctionGraph(nil, m)
	}
}

// BenchmarkNewFunctionGraph_100 builds a 100-node linear graph.
func BenchmarkNewFunctionGraph_100(b *testing.B) {
	m := linearModule(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = flowdag.NewFunctionGraph(nil, m)
	}
}

// BenchmarkUpstreamNodes_100 walks the full upstream closure of a
// 100-node linear graph.
func BenchmarkUpstreamNodes_100(b *testing.B) {
	g := mustGraph(linearModule(100))
	final := []string{nodeID(99)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = g.UpstreamNodes(final, nil, nil)
	}
}

// BenchmarkNodesBetween_100 intersects forward and backward closures on
// a 100-node linear graph.
func BenchmarkNodesBetween_100(b *testing.B) {
	g := mustGraph(linearModule(100))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = g.NodesBetween(nodeID(0), nodeID(99))
	}
}

// BenchmarkCheckCycles_100 runs cycle detection over a 100-node graph.
func BenchmarkCheckCycles_100(b *testing.B) {
	g := mustGraph(linearModule(100))
	nodes := g.Nodes()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.CheckCycles(nodes)
	}
}

// Helper functions

func nodeID(n int) string {
	return string(rune('a'+n%26)) + string(rune('0'+n/26%10))
}

func linearModule(n int) *flowdag.Module {
	m := flowdag.NewModule("bench")
	m.Provide(noopDef(nodeID(0)))
	for i := 1; i < n; i++ {
		m.Provide(noopDef(nodeID(i), nodeID(i-1)))
	}
	return m
}

func mustGraph(modules ...*flowdag.Module) *flowdag.FunctionGraph {
	g, err := flowdag.NewFunctionGraph(nil, modules...)
	if err != nil {
		panic(err)
	}
	return g
}
