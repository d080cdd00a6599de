/*
Package flowdag provides a declarative dataflow engine for Go.

# Overview

flowdag builds a directed acyclic graph of named computations from
module-registered node definitions, then computes any requested subset of
outputs on demand. Dependencies are declared, never called: a node names
its inputs, and the engine wires producers to consumers, validates types,
and decides what actually has to run.

The engine provides:
  - Explicit node definitions validated at graph construction
  - Minimal-subgraph execution: only what the request needs runs
  - Task-based scheduling with pluggable executors
  - OpenTelemetry and Prometheus integration for observability

# Basic Usage

Register definitions in a module, build a driver, and request outputs:

	features := flowdag.NewModule("features").
	    Provide(flowdag.NodeDefinition{
	        Name:   "total",
	        Type:   flowdag.Returns[float64](),
	        Params: []flowdag.Parameter{flowdag.Param[float64]("price"), flowdag.Param[int]("quantity")},
	        Fn: func(kwargs map[string]any) (any, error) {
	            return kwargs["price"].(float64) * float64(kwargs["quantity"].(int)), nil
	        },
	    })

	dr, err := flowdag.NewBuilder().
	    WithModules(features).
	    Build()
	if err != nil {
	    log.Fatal(err)
	}

	result, err := dr.Execute(context.Background(), []string{"total"},
	    flowdag.WithInputs(map[string]any{"price": 9.99, "quantity": 3}))
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(result.(map[string]any)["total"])

Parameters with no producing function become external inputs: their
values arrive through config or per-run inputs, and the driver validates
presence and type before anything executes.

# Overrides

Pin any node's value for one run; its function and everything exclusively
upstream of it are skipped:

	result, err := dr.Execute(ctx, []string{"report"},
	    flowdag.WithOverrides(map[string]any{"model": trainedModel}))

# Task-Based Execution

Switch the driver to grouped task scheduling for parallelism:

	dr, err := flowdag.NewBuilder().
	    WithModules(features, model).
	    WithTaskExecution().
	    WithMaxTasks(4).
	    Build()

Nodes are partitioned into tasks by a GroupingStrategy (linear chains
collapse by default), tasks are dispatched to executors as their
dependencies finish, and results flow through a write-once ResultCache.
Route tasks to different executors by tagging nodes with "execution" and
configuring an ExecutionManager.

# Introspection

Ask the graph questions without running anything:

	vars := dr.ListVariables()
	up, err := dr.WhatIsUpstreamOf("report")
	path, err := dr.PathBetween("raw_data", "report")

# Observability

Enable logging, metrics, and tracing:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dr, err := flowdag.NewBuilder().
	    WithModules(features).
	    WithLogger(logger).
	    WithMetrics(observability.NewMetricsRecorder()).
	    WithSpanManager(observability.NewSpanManager()).
	    Build()

Logs include structured fields: run_id, task_id, duration_ms.
OpenTelemetry metrics: flowdag.run.count, flowdag.task.latency_ms, etc.
OpenTelemetry tracing: flowdag.run > flowdag.task.{id} spans.

# Error Handling

Errors carry context about what failed:

	result, err := dr.Execute(ctx, []string{"report"})
	var valErr *flowdag.ValidationError
	if errors.As(err, &valErr) {
	    log.Printf("bad request:\n%s", valErr)
	}

	var nodeErr *flowdag.NodeExecutionError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s failed: %v", nodeErr.Node, nodeErr.Err)
	}

Panics in node functions are recovered and converted to NodePanicError
with a stack trace.

# Thread Safety

  - Module is NOT safe for concurrent use during registration
  - FunctionGraph and Driver ARE safe for concurrent use (immutable)
  - ResultCache implementations are safe for concurrent use

# Subpackages

  - cache: result caching across runs with transitive invalidation
  - config: configuration loading (YAML, maps)
  - materialize: saving outputs to external stores
  - observability: logging, metrics, and tracing helpers
*/
package flowdag
