package flowdag

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMetrics captures which nodes, tasks, and runs were recorded.
type recordingMetrics struct {
	mu    sync.Mutex
	nodes []string
	tasks []string
	runs  int
}

func (r *recordingMetrics) RecordNodeExecution(_ context.Context, nodeName string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, nodeName)
}

func (r *recordingMetrics) RecordTaskExecution(_ context.Context, taskID string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, taskID)
}

func (r *recordingMetrics) RecordRun(_ context.Context, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
}

func (r *recordingMetrics) nodeNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.nodes...)
	sort.Strings(out)
	return out
}

// TestDriver_NodeMetricsRecorded verifies every executed node reports
// through the configured recorder on both execution paths.
func TestDriver_NodeMetricsRecorded(t *testing.T) {
	for _, taskBased := range []bool{false, true} {
		rec := &recordingMetrics{}
		b := NewBuilder().WithModules(diamondModule()).WithMetrics(rec)
		if taskBased {
			b = b.WithTaskExecution()
		}
		dr, err := b.Build()
		require.NoError(t, err)

		_, err = dr.Execute(context.Background(), []string{"top"})
		require.NoError(t, err)

		assert.Equal(t, []string{"base", "left", "right", "top"}, rec.nodeNames())
		assert.Equal(t, 1, rec.runs)
	}
}

// TestDriver_OverriddenNodesNotRecorded verifies pinned nodes never reach
// the recorder since they never execute.
func TestDriver_OverriddenNodesNotRecorded(t *testing.T) {
	rec := &recordingMetrics{}
	dr, err := NewBuilder().WithModules(diamondModule()).WithMetrics(rec).Build()
	require.NoError(t, err)

	_, err = dr.Execute(context.Background(), []string{"top"},
		WithOverrides(map[string]any{"left": 5.0, "right": 5.0}))
	require.NoError(t, err)
	assert.Equal(t, []string{"top"}, rec.nodeNames())
}
