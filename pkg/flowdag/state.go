package flowdag

import (
	"fmt"
	"sync"
)

// TaskStatus is the lifecycle state of a task within one run.
type TaskStatus int

const (
	// TaskPending means the task has not been dispatched yet.
	TaskPending TaskStatus = iota
	// TaskRunning means the task has been handed to an executor.
	TaskRunning
	// TaskDone means the task completed and its outputs are cached.
	TaskDone
	// TaskFailed means the task's executor reported an error.
	TaskFailed
)

// String returns a human-readable status name.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskDone:
		return "done"
	case TaskFailed:
		return "failed"
	}
	return fmt.Sprintf("TaskStatus(%d)", int(s))
}

// ResultCache holds computed node values for one run. Writes are
// write-once per name; a second write for the same name is a bug in the
// task plan and is rejected rather than silently overwritten.
//
// Implementations must be safe for concurrent use: pooled executors write
// from their own goroutines.
type ResultCache interface {
	Write(name string, value any) error
	Read(name string) (any, error)
	Has(name string) bool
}

// DictResultCache is the in-memory ResultCache used for single-process
// runs.
type DictResultCache struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewDictResultCache creates an empty cache, optionally pre-hydrated with
// the given values (overrides and externally supplied inputs).
func NewDictResultCache(seed map[string]any) *DictResultCache {
	values := make(map[string]any, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &DictResultCache{values: values}
}

// Write implements ResultCache. Writing a name twice returns
// ErrDuplicateWrite.
func (c *DictResultCache) Write(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWrite, name)
	}
	c.values[name] = value
	return nil
}

// Read implements ResultCache. Reading a name that was never written
// returns ErrResultNotComputed.
func (c *DictResultCache) Read(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResultNotComputed, name)
	}
	return v, nil
}

// Has implements ResultCache.
func (c *DictResultCache) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[name]
	return ok
}

// ExecutionState tracks per-task status for one run and answers the
// scheduler's only real question: which tasks are eligible now.
//
// ExecutionState is not itself synchronized; the scheduler owns it on a
// single goroutine and executors never touch it.
type ExecutionState struct {
	tasks  map[string]*Task
	status map[string]TaskStatus
	order  []string
	errs   map[string]error
}

// NewExecutionState creates tracking state for the given task plan, with
// every task pending.
func NewExecutionState(tasks []*Task) *ExecutionState {
	s := &ExecutionState{
		tasks:  make(map[string]*Task, len(tasks)),
		status: make(map[string]TaskStatus, len(tasks)),
		order:  make([]string, 0, len(tasks)),
		errs:   make(map[string]error),
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
		s.status[t.ID] = TaskPending
		s.order = append(s.order, t.ID)
	}
	return s
}

// Eligible returns every pending task whose dependencies are all done, in
// plan order. Deterministic: the same state always yields the same list.
func (s *ExecutionState) Eligible() []*Task {
	var out []*Task
	for _, id := range s.order {
		if s.status[id] != TaskPending {
			continue
		}
		ready := true
		for _, dep := range s.tasks[id].Dependencies {
			if s.status[dep] != TaskDone {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, s.tasks[id])
		}
	}
	return out
}

// MarkRunning transitions a task to running.
func (s *ExecutionState) MarkRunning(id string) {
	s.status[id] = TaskRunning
}

// Complete transitions a task to done.
func (s *ExecutionState) Complete(id string) {
	s.status[id] = TaskDone
}

// Fail transitions a task to failed, recording its error.
func (s *ExecutionState) Fail(id string, err error) {
	s.status[id] = TaskFailed
	s.errs[id] = err
}

// Status returns the task's current status.
func (s *ExecutionState) Status(id string) TaskStatus {
	return s.status[id]
}

// Running reports how many tasks are currently running.
func (s *ExecutionState) Running() int {
	n := 0
	for _, st := range s.status {
		if st == TaskRunning {
			n++
		}
	}
	return n
}

// AllTerminal reports whether every task is done or failed.
func (s *ExecutionState) AllTerminal() bool {
	for _, st := range s.status {
		if st == TaskPending || st == TaskRunning {
			return false
		}
	}
	return true
}

// HasFailed reports whether any task has failed.
func (s *ExecutionState) HasFailed() bool {
	return len(s.errs) > 0
}

// Failures returns the recorded task failures as TaskFailureError values,
// ordered by plan order.
func (s *ExecutionState) Failures() []error {
	var out []error
	for _, id := range s.order {
		if err, ok := s.errs[id]; ok {
			out = append(out, &TaskFailureError{TaskID: id, Err: err})
		}
	}
	return out
}
