package flowdag

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxPooledTasks caps concurrent tasks in a PooledTaskExecutor
// when no explicit limit is configured.
const DefaultMaxPooledTasks = 10

// TaskRun bundles everything an executor needs to run one task: the task
// itself, the graph it came from, the node invocation strategy, and the
// resolved values for the task's input boundary.
type TaskRun struct {
	Task    *Task
	Graph   *FunctionGraph
	Adapter GraphAdapter
	Inputs  map[string]any
}

// TaskResult is the terminal outcome of one task: either the values for
// the task's output boundary or the error that stopped it.
type TaskResult struct {
	TaskID  string
	Outputs map[string]any
	Err     error
}

// TaskExecutor runs tasks and delivers their results asynchronously. The
// returned channel receives exactly one TaskResult and is then closed.
//
// Submit itself returns an error only for submission problems (a missing
// transport, a cancelled context); task failures travel in the result.
type TaskExecutor interface {
	Submit(ctx context.Context, run *TaskRun) (<-chan TaskResult, error)
}

// Execute runs the task's nodes in order against a scope seeded from the
// boundary inputs and returns the values for the task's output boundary.
// Panics in node callables surface as *NodePanicError; the context is
// checked between nodes so cancellation stops a long task at the next
// node boundary.
func (r *TaskRun) Execute(ctx context.Context) (map[string]any, error) {
	adapter := r.Adapter
	if adapter == nil {
		adapter = DefaultAdapter{}
	}

	scope := make(map[string]any, len(r.Inputs)+len(r.Task.Nodes))
	for k, v := range r.Inputs {
		scope[k] = v
	}

	for _, n := range r.Task.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("task %s: %w", r.Task.ID, err)
		}
		if _, done := scope[n.Name()]; done {
			continue
		}
		if n.UserDefined() {
			if v, ok := r.Graph.Config()[n.Name()]; ok {
				scope[n.Name()] = v
			}
			// No value anywhere: leave it out of scope so consumers with
			// optional dependencies still run.
			continue
		}

		kwargs := make(map[string]any, len(n.Parameters()))
		for _, p := range n.Parameters() {
			v, ok := scope[p.Name]
			if !ok {
				if p.Dependency == Optional {
					continue
				}
				if dep, found := r.Graph.Node(p.Name); found && dep.UserDefined() {
					return nil, &NodeExecutionError{Node: p.Name, Err: ErrMissingInput}
				}
				return nil, &NodeExecutionError{
					Node: n.Name(),
					Err:  fmt.Errorf("dependency %s not in task scope", p.Name),
				}
			}
			kwargs[p.Name] = v
		}

		v, err := adapter.ExecuteNode(n, kwargs)
		if err != nil {
			return nil, wrapNodeError(n.Name(), err)
		}
		scope[n.Name()] = v
	}

	outputs := make(map[string]any, len(r.Task.Outputs))
	for _, name := range r.Task.Outputs {
		v, ok := scope[name]
		if !ok {
			if n, found := r.Graph.Node(name); found && n.UserDefined() {
				// An external input with no value has nothing to export.
				continue
			}
			return nil, fmt.Errorf("task %s: %w: %s", r.Task.ID, ErrResultNotComputed, name)
		}
		outputs[name] = v
	}
	return outputs, nil
}

// SynchronousLocalTaskExecutor runs each submitted task inline on the
// calling goroutine. Zero concurrency, zero overhead; the baseline
// executor and the default for lightweight coordination tasks.
type SynchronousLocalTaskExecutor struct{}

// Submit implements TaskExecutor.
func (SynchronousLocalTaskExecutor) Submit(ctx context.Context, run *TaskRun) (<-chan TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := run.Execute(ctx)
	ch := make(chan TaskResult, 1)
	ch <- TaskResult{TaskID: run.Task.ID, Outputs: out, Err: err}
	close(ch)
	return ch, nil
}

// PooledTaskExecutor runs tasks on their own goroutines with a weighted
// semaphore bounding how many run at once. With the cap at 1 a run
// produces the same results as the synchronous executor, just with
// scheduling in between.
type PooledTaskExecutor struct {
	sem *semaphore.Weighted
}

// NewPooledTaskExecutor creates a pooled executor running at most
// maxTasks tasks concurrently. maxTasks < 1 falls back to
// DefaultMaxPooledTasks.
func NewPooledTaskExecutor(maxTasks int) *PooledTaskExecutor {
	if maxTasks < 1 {
		maxTasks = DefaultMaxPooledTasks
	}
	return &PooledTaskExecutor{sem: semaphore.NewWeighted(int64(maxTasks))}
}

// Submit implements TaskExecutor. The slot is acquired on the task's own
// goroutine, so Submit never blocks the scheduler loop even when the pool
// is saturated.
func (e *PooledTaskExecutor) Submit(ctx context.Context, run *TaskRun) (<-chan TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan TaskResult, 1)
	go func() {
		defer close(ch)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			ch <- TaskResult{TaskID: run.Task.ID, Err: fmt.Errorf("task %s: %w", run.Task.ID, err)}
			return
		}
		defer e.sem.Release(1)
		out, err := run.Execute(ctx)
		ch <- TaskResult{TaskID: run.Task.ID, Outputs: out, Err: err}
	}()
	return ch, nil
}

// TaskTransport ships a task run to some remote compute substrate and
// returns its result. Implementations own serialization and placement.
type TaskTransport interface {
	Send(ctx context.Context, run *TaskRun) (TaskResult, error)
}

// RemoteTaskExecutor submits tasks through a TaskTransport. It exists so
// the scheduler can mix local and remote placement per task; without a
// transport it refuses every submission.
type RemoteTaskExecutor struct {
	// Transport carries the task to remote compute. Required.
	Transport TaskTransport
}

// Submit implements TaskExecutor.
func (e *RemoteTaskExecutor) Submit(ctx context.Context, run *TaskRun) (<-chan TaskResult, error) {
	if e.Transport == nil {
		return nil, fmt.Errorf("task %s: %w", run.Task.ID, ErrNoTransport)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan TaskResult, 1)
	go func() {
		defer close(ch)
		res, err := e.Transport.Send(ctx, run)
		if err != nil {
			ch <- TaskResult{TaskID: run.Task.ID, Err: err}
			return
		}
		res.TaskID = run.Task.ID
		ch <- res
	}()
	return ch, nil
}

// ExecutionManager picks an executor for each task. It lets one run mix
// placements: coordination tasks inline, heavy blocks on the pool or a
// remote substrate.
type ExecutionManager interface {
	ExecutorFor(t *Task) TaskExecutor
}

// DefaultExecutionManager routes by the task's execution tag: tasks
// tagged "local" run inline on the synchronous executor, everything else
// goes to the pooled executor.
type DefaultExecutionManager struct {
	local  TaskExecutor
	pooled TaskExecutor
}

// NewDefaultExecutionManager creates the default router with a pool of
// the given size (DefaultMaxPooledTasks when maxTasks < 1).
func NewDefaultExecutionManager(maxTasks int) *DefaultExecutionManager {
	return &DefaultExecutionManager{
		local:  SynchronousLocalTaskExecutor{},
		pooled: NewPooledTaskExecutor(maxTasks),
	}
}

// ExecutorFor implements ExecutionManager.
func (m *DefaultExecutionManager) ExecutorFor(t *Task) TaskExecutor {
	if t.Purpose == "local" {
		return m.local
	}
	return m.pooled
}

// wrapNodeError wraps a callable failure in *NodeExecutionError exactly
// once, leaving already-typed errors alone.
func wrapNodeError(node string, err error) error {
	switch err.(type) {
	case *NodeExecutionError, *NodePanicError:
		return err
	}
	return &NodeExecutionError{Node: node, Err: err}
}
