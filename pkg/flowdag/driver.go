package flowdag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/google/uuid"

	"github.com/randalmurphal/flowdag/pkg/flowdag/config"
	"github.com/randalmurphal/flowdag/pkg/flowdag/observability"
)

// Variable is the introspection view of one graph node: everything a
// caller can learn about an output without executing anything.
type Variable struct {
	// Name is the node name.
	Name string
	// Type is the declared output type.
	Type reflect.Type
	// Tags are the node's tags.
	Tags map[string]string
	// IsExternalInput reports whether the value must come from config or
	// runtime inputs rather than a function.
	IsExternalInput bool
	// OriginatingFunctions is provenance: the module definitions behind
	// this node. Empty for external inputs.
	OriginatingFunctions []string
}

func variableFromNode(n *Node) Variable {
	return Variable{
		Name:                 n.Name(),
		Type:                 n.Type(),
		Tags:                 n.Tags(),
		IsExternalInput:      n.UserDefined(),
		OriginatingFunctions: n.OriginatingFunctions(),
	}
}

// Driver is the façade over a function graph: it validates requests,
// executes the right subgraph, and assembles results. Construct one with
// a Builder.
//
// A Driver is immutable and safe for concurrent use; each Execute call
// gets its own run ID, result cache, and execution state.
type Driver struct {
	graph     *FunctionGraph
	adapter   GraphAdapter
	taskBased bool
	grouping  GroupingStrategy
	manager   ExecutionManager
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
}

// Builder assembles a Driver step by step. Methods return the builder for
// chaining; all configuration problems are gathered and reported together
// by Build.
//
// Example:
//
//	dr, err := flowdag.NewBuilder().
//	    WithConfig(map[string]any{"region": "eu"}).
//	    WithModules(features, model).
//	    WithTaskExecution().
//	    Build()
type Builder struct {
	config        map[string]any
	modules       []*Module
	adapter       GraphAdapter
	resultBuilder ResultBuilder
	taskBased     bool
	grouping      GroupingStrategy
	manager       ExecutionManager
	localExec     TaskExecutor
	remoteExec    TaskExecutor
	maxTasks      int
	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager

	errs []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{maxTasks: DefaultMaxPooledTasks}
}

// WithConfig sets the static configuration map used for graph shaping and
// config-backed inputs.
func (b *Builder) WithConfig(config map[string]any) *Builder {
	b.config = config
	return b
}

// WithConfigFile loads the static configuration from a YAML or JSON
// file, replacing any earlier WithConfig. Load failures are reported by
// Build alongside other configuration errors.
func (b *Builder) WithConfigFile(path string) *Builder {
	cfg, err := config.FromFile(path)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.config = cfg.Raw()
	return b
}

// WithModules adds the modules contributing node definitions.
func (b *Builder) WithModules(modules ...*Module) *Builder {
	b.modules = append(b.modules, modules...)
	return b
}

// WithAdapter sets the full execution strategy: type checking, node
// invocation, and result building. Mutually exclusive with
// WithResultBuilder.
func (b *Builder) WithAdapter(adapter GraphAdapter) *Builder {
	b.adapter = adapter
	return b
}

// WithResultBuilder customizes result assembly while keeping the default
// adapter's type checking and invocation. Mutually exclusive with
// WithAdapter.
func (b *Builder) WithResultBuilder(rb ResultBuilder) *Builder {
	b.resultBuilder = rb
	return b
}

// WithTaskExecution switches Execute from depth-first in-process
// evaluation to grouped task-based scheduling.
func (b *Builder) WithTaskExecution() *Builder {
	b.taskBased = true
	return b
}

// WithGroupingStrategy sets how nodes partition into tasks. Requires
// WithTaskExecution. Defaults to GroupByRepeatableBlocks.
func (b *Builder) WithGroupingStrategy(s GroupingStrategy) *Builder {
	b.grouping = s
	return b
}

// WithExecutionManager sets the task-to-executor router. Requires
// WithTaskExecution; mutually exclusive with WithLocalExecutor and
// WithRemoteExecutor.
func (b *Builder) WithExecutionManager(m ExecutionManager) *Builder {
	b.manager = m
	return b
}

// WithLocalExecutor sets the executor for tasks tagged "local". Requires
// WithTaskExecution; mutually exclusive with WithExecutionManager.
func (b *Builder) WithLocalExecutor(e TaskExecutor) *Builder {
	b.localExec = e
	return b
}

// WithRemoteExecutor sets the executor for every task not tagged "local".
// Requires WithTaskExecution; mutually exclusive with
// WithExecutionManager.
func (b *Builder) WithRemoteExecutor(e TaskExecutor) *Builder {
	b.remoteExec = e
	return b
}

// WithMaxTasks bounds concurrent tasks in the default pooled executor.
func (b *Builder) WithMaxTasks(n int) *Builder {
	b.maxTasks = n
	return b
}

// WithLogger sets the structured logger for run and task events. Nil
// disables logging.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics sets the metrics recorder for run, task, and node events.
func (b *Builder) WithMetrics(m observability.MetricsRecorder) *Builder {
	b.metrics = m
	return b
}

// WithSpanManager enables tracing of runs and tasks.
func (b *Builder) WithSpanManager(s observability.SpanManager) *Builder {
	b.spans = s
	return b
}

// Build validates the configuration, constructs the function graph, and
// returns the Driver. All configuration errors are joined and returned
// together, alongside any *GraphConstructionError from the graph build.
func (b *Builder) Build() (*Driver, error) {
	errs := append([]error(nil), b.errs...)
	if len(b.modules) == 0 {
		errs = append(errs, errors.New("at least one module is required"))
	}
	if b.adapter != nil && b.resultBuilder != nil {
		errs = append(errs, errors.New("WithAdapter and WithResultBuilder are mutually exclusive"))
	}
	if !b.taskBased {
		if b.grouping != nil {
			errs = append(errs, errors.New("WithGroupingStrategy requires WithTaskExecution"))
		}
		if b.manager != nil {
			errs = append(errs, errors.New("WithExecutionManager requires WithTaskExecution"))
		}
		if b.localExec != nil || b.remoteExec != nil {
			errs = append(errs, errors.New("WithLocalExecutor/WithRemoteExecutor require WithTaskExecution"))
		}
	}
	if b.manager != nil && (b.localExec != nil || b.remoteExec != nil) {
		errs = append(errs, errors.New("WithExecutionManager is mutually exclusive with WithLocalExecutor/WithRemoteExecutor"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g, err := NewFunctionGraph(b.config, b.modules...)
	if err != nil {
		return nil, err
	}

	adapter := b.adapter
	if adapter == nil {
		adapter = DefaultAdapter{Builder: b.resultBuilder}
	}
	grouping := b.grouping
	if grouping == nil {
		grouping = GroupByRepeatableBlocks{}
	}
	manager := b.manager
	if manager == nil {
		if b.localExec != nil || b.remoteExec != nil {
			local := b.localExec
			if local == nil {
				local = SynchronousLocalTaskExecutor{}
			}
			remote := b.remoteExec
			if remote == nil {
				remote = NewPooledTaskExecutor(b.maxTasks)
			}
			manager = &splitExecutionManager{local: local, remote: remote}
		} else {
			manager = NewDefaultExecutionManager(b.maxTasks)
		}
	}
	metrics := b.metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	spans := b.spans
	if spans == nil {
		spans = observability.NoopSpanManager{}
	}

	return &Driver{
		graph:     g,
		adapter:   adapter,
		taskBased: b.taskBased,
		grouping:  grouping,
		manager:   manager,
		logger:    b.logger,
		metrics:   metrics,
		spans:     spans,
	}, nil
}

// splitExecutionManager routes "local"-tagged tasks to one executor and
// everything else to another.
type splitExecutionManager struct {
	local  TaskExecutor
	remote TaskExecutor
}

func (m *splitExecutionManager) ExecutorFor(t *Task) TaskExecutor {
	if t.Purpose == "local" {
		return m.local
	}
	return m.remote
}

// execOptions carries per-run parameters.
type execOptions struct {
	overrides map[string]any
	inputs    map[string]any
}

// ExecOption configures one Execute call.
type ExecOption func(*execOptions)

// WithOverrides pins node values for this run: the named nodes are not
// executed and nothing exclusively upstream of them runs either.
func WithOverrides(overrides map[string]any) ExecOption {
	return func(o *execOptions) { o.overrides = overrides }
}

// WithInputs supplies values for external inputs for this run, taking
// precedence over config entries of the same name.
func WithInputs(inputs map[string]any) ExecOption {
	return func(o *execOptions) { o.inputs = inputs }
}

// Execute computes the requested variables and returns the assembled
// result. The run is validated before anything executes: every problem
// with the request (unknown names, missing inputs, type mismatches) is
// gathered into one *ValidationError.
func (d *Driver) Execute(ctx context.Context, finalVars []string, opts ...ExecOption) (any, error) {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}

	runID := uuid.NewString()
	logger := d.logger
	observability.LogRunStart(logger, runID, finalVars)
	done := observability.TimedOperation()
	ctx, runSpan := d.spans.StartRunSpan(ctx, runID)

	result, taskCount, err := d.execute(ctx, runID, finalVars, &o)

	durationMs := done()
	d.metrics.RecordRun(ctx, err == nil, msToDuration(durationMs))
	d.spans.EndSpanWithError(runSpan, err)
	if err != nil {
		observability.LogRunError(logger, runID, err, durationMs)
		return nil, err
	}
	observability.LogRunComplete(logger, runID, durationMs, taskCount)
	return result, nil
}

func (d *Driver) execute(ctx context.Context, runID string, finalVars []string, o *execOptions) (any, int, error) {
	nodes, userNodes, err := d.graph.UpstreamNodes(finalVars, o.inputs, o.overrides)
	if err != nil {
		return nil, 0, err
	}
	if err := d.validate(nodes, userNodes, o); err != nil {
		return nil, 0, err
	}
	all := append(append([]*Node(nil), nodes...), userNodes...)
	if err := d.graph.CheckCycles(all); err != nil {
		return nil, 0, err
	}

	adapter := d.instrument(ctx, d.adapter)

	if !d.taskBased {
		memo, err := d.graph.Execute(nodes, nil, o.overrides, o.inputs, adapter)
		if err != nil {
			return nil, 0, err
		}
		// Requested external inputs and overrides land in the memo too.
		for _, name := range finalVars {
			if _, ok := memo[name]; ok {
				continue
			}
			if v, ok := o.inputs[name]; ok {
				memo[name] = v
			} else if v, ok := d.graph.Config()[name]; ok {
				memo[name] = v
			}
		}
		result, err := d.buildResult(finalVars, func(name string) (any, bool) {
			v, ok := memo[name]
			return v, ok
		})
		return result, 0, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	groups := d.grouping.Group(d.graph, all)
	plan, err := NewTaskPlan(d.graph, groups, finalVars, o.overrides)
	if err != nil {
		return nil, 0, err
	}

	seed := make(map[string]any, len(o.overrides)+len(o.inputs))
	for k, v := range o.overrides {
		seed[k] = v
	}
	for k, v := range o.inputs {
		seed[k] = v
	}
	cache := NewDictResultCache(seed)

	runner := NewGraphRunner(d.graph, plan, d.manager, cache, adapter,
		WithRunnerLogger(d.logger),
		WithRunnerMetrics(d.metrics),
		WithRunnerSpanManager(d.spans),
		WithRunnerRunID(runID),
	)
	if err := runner.RunUntilComplete(ctx); err != nil {
		return nil, len(plan), err
	}

	result, err := d.buildResult(finalVars, func(name string) (any, bool) {
		if cache.Has(name) {
			v, readErr := cache.Read(name)
			return v, readErr == nil
		}
		if v, ok := d.graph.Config()[name]; ok {
			return v, true
		}
		return nil, false
	})
	return result, len(plan), err
}

// validate checks the run's external inputs before anything executes.
// Violations are gathered, sorted, and returned as one *ValidationError.
func (d *Driver) validate(nodes, userNodes []*Node, o *execOptions) error {
	var issues []string

	inSet := make(map[string]bool, len(nodes)+len(userNodes))
	for _, n := range nodes {
		inSet[n.Name()] = true
	}
	for _, n := range userNodes {
		inSet[n.Name()] = true
	}

	for _, n := range userNodes {
		name := n.Name()
		value, provided := o.inputs[name]
		if !provided {
			value, provided = d.graph.Config()[name]
		}
		if !provided {
			if d.inputRequired(name, inSet) {
				issues = append(issues, fmt.Sprintf("required input %s not provided", name))
			}
			continue
		}
		if !d.adapter.CheckInputType(n.Type(), value) {
			issues = append(issues, fmt.Sprintf(
				"input %s expects %v, got %T", name, n.Type(), value))
		}
	}

	for _, name := range sortedKeys(o.overrides) {
		n, ok := d.graph.Node(name)
		if !ok {
			issues = append(issues, fmt.Sprintf("override %s does not match any node", name))
			continue
		}
		if !d.adapter.CheckInputType(n.Type(), o.overrides[name]) {
			issues = append(issues, fmt.Sprintf(
				"override %s expects %v, got %T", name, n.Type(), o.overrides[name]))
		}
	}
	for _, name := range sortedKeys(o.inputs) {
		if _, ok := d.graph.Node(name); !ok {
			issues = append(issues, fmt.Sprintf("input %s does not match any node", name))
		}
	}

	if len(issues) > 0 {
		sort.Strings(issues)
		return &ValidationError{Issues: issues}
	}
	return nil
}

// inputRequired reports whether any consumer inside the execution set
// declares the input as required.
func (d *Driver) inputRequired(name string, inSet map[string]bool) bool {
	for _, consumer := range d.graph.Dependents(name) {
		if !inSet[consumer] {
			continue
		}
		n, ok := d.graph.Node(consumer)
		if !ok {
			continue
		}
		if p, ok := n.Parameter(name); ok && p.Dependency == Required {
			return true
		}
	}
	return false
}

func (d *Driver) buildResult(finalVars []string, lookup func(string) (any, bool)) (any, error) {
	outputs := make(map[string]any, len(finalVars))
	for _, name := range finalVars {
		v, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrResultNotComputed, name)
		}
		outputs[name] = v
	}
	return d.adapter.BuildResult(outputs)
}

// ListVariables returns every graph output, sorted by name.
func (d *Driver) ListVariables() []Variable {
	nodes := d.graph.Nodes()
	out := make([]Variable, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, variableFromNode(n))
	}
	return out
}

// WhatIsUpstreamOf returns everything the named outputs transitively
// depend on, inclusive, sorted by name.
func (d *Driver) WhatIsUpstreamOf(names ...string) ([]Variable, error) {
	nodes, userNodes, err := d.graph.UpstreamNodes(names, nil, nil)
	if err != nil {
		return nil, err
	}
	all := append(append([]*Node(nil), nodes...), userNodes...)
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	out := make([]Variable, 0, len(all))
	for _, n := range all {
		out = append(out, variableFromNode(n))
	}
	return out, nil
}

// WhatIsDownstreamOf returns everything transitively affected by the
// named outputs, inclusive, sorted by name.
func (d *Driver) WhatIsDownstreamOf(names ...string) ([]Variable, error) {
	nodes, err := d.graph.DownstreamNodes(names...)
	if err != nil {
		return nil, err
	}
	out := make([]Variable, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, variableFromNode(n))
	}
	return out, nil
}

// PathBetween returns the variables on any dependency path from upstream
// to downstream, inclusive of both; empty when no path exists.
func (d *Driver) PathBetween(upstream, downstream string) ([]Variable, error) {
	nodes, err := d.graph.NodesBetween(upstream, downstream)
	if err != nil {
		return nil, err
	}
	out := make([]Variable, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, variableFromNode(n))
	}
	return out, nil
}

// HasCycles reports whether the subgraph needed to compute the named
// outputs contains a dependency cycle.
func (d *Driver) HasCycles(finalVars []string) (bool, error) {
	nodes, userNodes, err := d.graph.UpstreamNodes(finalVars, nil, nil)
	if err != nil {
		return false, err
	}
	all := append(append([]*Node(nil), nodes...), userNodes...)
	return d.graph.HasCycles(all), nil
}

// Graph exposes the underlying function graph for advanced integrations
// such as materialization.
func (d *Driver) Graph() *FunctionGraph { return d.graph }
