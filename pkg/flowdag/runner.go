package flowdag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/flowdag/pkg/flowdag/observability"
)

// GraphRunner drives a task plan to completion: it dispatches eligible
// tasks to their executors, collects results into the result cache, and
// stops when every task is terminal.
//
// The runner owns the execution state on its own goroutine; executors
// only ever see the TaskRun handed to them and the result channel they
// return.
type GraphRunner struct {
	graph   *FunctionGraph
	adapter GraphAdapter
	manager ExecutionManager
	cache   ResultCache
	state   *ExecutionState

	runID   string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// RunnerOption configures a GraphRunner.
type RunnerOption func(*GraphRunner)

// WithRunnerLogger sets the structured logger for scheduling events.
// Nil disables logging.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *GraphRunner) { r.logger = logger }
}

// WithRunnerMetrics sets the metrics recorder for task completions.
func WithRunnerMetrics(m observability.MetricsRecorder) RunnerOption {
	return func(r *GraphRunner) { r.metrics = m }
}

// WithRunnerSpanManager sets the span manager for per-task tracing.
func WithRunnerSpanManager(s observability.SpanManager) RunnerOption {
	return func(r *GraphRunner) { r.spans = s }
}

// WithRunnerRunID tags scheduling events with the run identifier.
func WithRunnerRunID(id string) RunnerOption {
	return func(r *GraphRunner) { r.runID = id }
}

// NewGraphRunner creates a runner for one execution of the given task
// plan. The cache should be pre-hydrated with overrides and externally
// supplied inputs; tasks whose outputs are all present get skipped rather
// than re-executed.
func NewGraphRunner(g *FunctionGraph, tasks []*Task, manager ExecutionManager, cache ResultCache, adapter GraphAdapter, opts ...RunnerOption) *GraphRunner {
	if manager == nil {
		manager = NewDefaultExecutionManager(DefaultMaxPooledTasks)
	}
	if cache == nil {
		cache = NewDictResultCache(nil)
	}
	if adapter == nil {
		adapter = DefaultAdapter{}
	}
	r := &GraphRunner{
		graph:   g,
		adapter: adapter,
		manager: manager,
		cache:   cache,
		state:   NewExecutionState(tasks),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the runner's result cache, for reading final values after
// a run.
func (r *GraphRunner) Cache() ResultCache { return r.cache }

// RunUntilComplete executes the plan until every task is terminal.
//
// After a task fails, no new tasks are dispatched, but tasks already
// running are allowed to finish so the cache is left in a consistent
// state. All task failures are returned joined; partial results stay
// readable through Cache.
func (r *GraphRunner) RunUntilComplete(ctx context.Context) error {
	completions := make(chan TaskResult)
	timers := make(map[string]func() float64)
	taskSpans := make(map[string]trace.Span)

	for !r.state.AllTerminal() {
		if !r.state.HasFailed() && ctx.Err() == nil {
			skipped := false
			for _, t := range r.state.Eligible() {
				if r.dispatch(ctx, t, completions, timers, taskSpans) {
					skipped = true
				}
			}
			if skipped {
				// A skip-completion can make more tasks eligible; rescan
				// before concluding nothing can progress.
				continue
			}
		}

		if r.state.Running() == 0 {
			if r.state.AllTerminal() {
				break
			}
			if r.state.HasFailed() || ctx.Err() != nil {
				// Drained; remaining pending tasks will never run.
				break
			}
			return fmt.Errorf("%w: %d tasks still pending", ErrNoProgress, r.pendingCount())
		}

		res := <-completions
		durationMs := 0.0
		if done, ok := timers[res.TaskID]; ok {
			durationMs = done()
		}
		r.metrics.RecordTaskExecution(ctx, res.TaskID, msToDuration(durationMs), res.Err)
		if span, ok := taskSpans[res.TaskID]; ok {
			r.spans.EndSpanWithError(span, res.Err)
			delete(taskSpans, res.TaskID)
		}

		taskLog := observability.EnrichLogger(r.logger, r.runID, res.TaskID)
		if res.Err != nil {
			observability.LogTaskError(taskLog, res.TaskID, res.Err)
			r.state.Fail(res.TaskID, res.Err)
			continue
		}
		if err := r.commit(res); err != nil {
			observability.LogTaskError(taskLog, res.TaskID, err)
			r.state.Fail(res.TaskID, err)
			continue
		}
		observability.LogTaskComplete(taskLog, res.TaskID, durationMs)
		r.state.Complete(res.TaskID)
	}

	if err := ctx.Err(); err != nil && !r.state.HasFailed() {
		return err
	}
	if r.state.HasFailed() {
		return errors.Join(r.state.Failures()...)
	}
	return nil
}

// dispatch hands one eligible task to its executor, or completes it
// immediately when every output it would produce is already cached. It
// reports whether the task was completed without dispatching, so the
// scheduler knows to rescan eligibility instead of waiting on a
// completion that will never arrive.
func (r *GraphRunner) dispatch(ctx context.Context, t *Task, completions chan<- TaskResult, timers map[string]func() float64, taskSpans map[string]trace.Span) bool {
	if r.allOutputsCached(t) {
		observability.LogTaskSkipped(r.logger, t.ID)
		r.state.Complete(t.ID)
		return true
	}

	inputs, err := r.resolveInputs(t)
	if err != nil {
		r.state.Fail(t.ID, err)
		return false
	}

	taskCtx, span := r.spans.StartTaskSpan(ctx, t.ID)
	run := &TaskRun{Task: t, Graph: r.graph, Adapter: r.adapter, Inputs: inputs}
	ch, err := r.manager.ExecutorFor(t).Submit(taskCtx, run)
	if err != nil {
		r.spans.EndSpanWithError(span, err)
		r.state.Fail(t.ID, err)
		return false
	}

	observability.LogTaskStart(r.logger, t.ID, len(t.Nodes))
	timers[t.ID] = observability.TimedOperation()
	taskSpans[t.ID] = span
	r.state.MarkRunning(t.ID)
	go func() {
		res, ok := <-ch
		if !ok {
			res = TaskResult{TaskID: t.ID, Err: fmt.Errorf("task %s: executor closed without a result", t.ID)}
		}
		completions <- res
	}()
	return false
}

// commit writes a finished task's outputs into the result cache.
func (r *GraphRunner) commit(res TaskResult) error {
	for _, name := range sortedKeys(res.Outputs) {
		if r.cache.Has(name) {
			// Pre-hydrated overrides win over computed values.
			continue
		}
		if err := r.cache.Write(name, res.Outputs[name]); err != nil {
			return err
		}
	}
	return nil
}

// resolveInputs gathers the values crossing into a task: cached results
// from upstream tasks first, then graph config for external inputs.
// Member nodes already in the cache (runtime inputs and overrides merged
// into the group) are seeded too, so the task reuses them instead of
// recomputing.
func (r *GraphRunner) resolveInputs(t *Task) (map[string]any, error) {
	inputs := make(map[string]any, len(t.Inputs))
	for _, n := range t.Nodes {
		if !r.cache.Has(n.Name()) {
			continue
		}
		v, err := r.cache.Read(n.Name())
		if err != nil {
			return nil, err
		}
		inputs[n.Name()] = v
	}
	for _, name := range t.Inputs {
		if r.cache.Has(name) {
			v, err := r.cache.Read(name)
			if err != nil {
				return nil, err
			}
			inputs[name] = v
			continue
		}
		if n, ok := r.graph.Node(name); ok && n.UserDefined() {
			if v, ok := r.graph.Config()[name]; ok {
				inputs[name] = v
			}
			// Unset external inputs stay out of scope; the task's own
			// parameter checks decide whether that is fatal.
			continue
		}
		return nil, fmt.Errorf("task %s: %w: %s", t.ID, ErrResultNotComputed, name)
	}
	return inputs, nil
}

func (r *GraphRunner) allOutputsCached(t *Task) bool {
	if len(t.Outputs) == 0 {
		return false
	}
	for _, name := range t.Outputs {
		if !r.cache.Has(name) {
			return false
		}
	}
	return true
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func (r *GraphRunner) pendingCount() int {
	n := 0
	for _, id := range r.state.order {
		if r.state.status[id] == TaskPending {
			n++
		}
	}
	return n
}
