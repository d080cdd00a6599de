package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics_RecordNodeExecution(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordNodeExecution(context.Background(), "node", 100*time.Millisecond, nil)
		})
	})

	t.Run("does not panic with error", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordNodeExecution(context.Background(), "node", 100*time.Millisecond, errors.New("test"))
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordNodeExecution(nil, "node", 0, nil)
		})
	})
}

func TestNoopMetrics_RecordTaskExecution(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordTaskExecution(context.Background(), "task", 100*time.Millisecond, nil)
		})
	})

	t.Run("does not panic with error", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordTaskExecution(context.Background(), "task", 0, errors.New("test"))
		})
	})
}

func TestNoopMetrics_RecordRun(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with success=true", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordRun(context.Background(), true, 500*time.Millisecond)
		})
	})

	t.Run("does not panic with success=false", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordRun(context.Background(), false, 100*time.Millisecond)
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordRun(nil, true, 0)
		})
	})
}

func TestNoopSpanManager_StartRunSpan(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("returns same context", func(t *testing.T) {
		ctx := context.Background()
		newCtx, span := sm.StartRunSpan(ctx, "run-1")

		assert.Equal(t, ctx, newCtx, "Context should be unchanged")
		assert.NotNil(t, span, "Span should not be nil")
	})

	t.Run("span is valid noop span", func(t *testing.T) {
		_, span := sm.StartRunSpan(context.Background(), "run-1")

		assert.False(t, span.IsRecording())
	})

	t.Run("does not panic with empty run ID", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.StartRunSpan(context.Background(), "")
		})
	})
}

func TestNoopSpanManager_StartTaskSpan(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("returns same context", func(t *testing.T) {
		ctx := context.Background()
		newCtx, span := sm.StartTaskSpan(ctx, "block_expand")

		assert.Equal(t, ctx, newCtx, "Context should be unchanged")
		assert.NotNil(t, span, "Span should not be nil")
	})

	t.Run("span is valid noop span", func(t *testing.T) {
		_, span := sm.StartTaskSpan(context.Background(), "block_expand")

		assert.False(t, span.IsRecording())
	})
}

func TestNoopSpanManager_StartNodeSpan(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("returns same context", func(t *testing.T) {
		ctx := context.Background()
		newCtx, span := sm.StartNodeSpan(ctx, "process")

		assert.Equal(t, ctx, newCtx, "Context should be unchanged")
		assert.NotNil(t, span, "Span should not be nil")
	})

	t.Run("does not panic with empty node name", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.StartNodeSpan(context.Background(), "")
		})
	})
}

func TestNoopSpanManager_EndSpanWithError(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("does not panic with nil span", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, nil)
		})
	})

	t.Run("does not panic with nil error", func(t *testing.T) {
		_, span := sm.StartRunSpan(context.Background(), "r")
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(span, nil)
		})
	})

	t.Run("does not panic with error", func(t *testing.T) {
		_, span := sm.StartRunSpan(context.Background(), "r")
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(span, errors.New("test error"))
		})
	})
}

func TestNoopSpanManager_AddSpanEvent(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(context.Background(), "test_event", attribute.String("key", "value"))
		})
	})

	t.Run("does not panic with no attributes", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(context.Background(), "test_event")
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(nil, "test_event")
		})
	})
}

func TestNoopImplementations_NoSideEffects(t *testing.T) {
	// Verifies the noops survive a realistic run -> task -> node sequence.
	metrics := NoopMetrics{}
	spans := NoopSpanManager{}

	ctx := context.Background()
	ctx, runSpan := spans.StartRunSpan(ctx, "run-123")

	for i, taskID := range []string{"fetch", "process", "save"} {
		taskCtx, taskSpan := spans.StartTaskSpan(ctx, taskID)

		var err error
		if i == 1 {
			err = errors.New("simulated error")
		}
		metrics.RecordNodeExecution(taskCtx, taskID+"_node", time.Millisecond, err)
		metrics.RecordTaskExecution(taskCtx, taskID, time.Millisecond, err)
		spans.AddSpanEvent(taskCtx, "task_finished", attribute.String("task_id", taskID))
		spans.EndSpanWithError(taskSpan, err)
	}

	metrics.RecordRun(ctx, true, 100*time.Millisecond)
	spans.EndSpanWithError(runSpan, nil)
}
