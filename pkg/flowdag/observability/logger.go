// Package observability provides production-grade observability features
// for flowdag: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds flowdag context to a logger.
// Returns a new logger with run_id and task_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "expand_block")
//	enriched.Info("doing work") // includes run_id, task_id
func EnrichLogger(logger *slog.Logger, runID, taskID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("task_id", taskID),
	)
}

// LogRunStart logs the start of a dataflow run.
func LogRunStart(logger *slog.Logger, runID string, finalVars []string) {
	if logger == nil {
		return
	}
	logger.Info("dataflow run starting",
		slog.String("run_id", runID),
		slog.Any("final_vars", finalVars),
	)
}

// LogRunComplete logs successful run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, taskCount int) {
	if logger == nil {
		return
	}
	logger.Info("dataflow run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("tasks_executed", taskCount),
	)
}

// LogRunError logs run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("dataflow run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTaskStart logs task dispatch to an executor.
func LogTaskStart(logger *slog.Logger, taskID string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Debug("task dispatched",
		slog.String("task_id", taskID),
		slog.Int("node_count", nodeCount),
	)
}

// LogTaskComplete logs successful task completion.
func LogTaskComplete(logger *slog.Logger, taskID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("task completed",
		slog.String("task_id", taskID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTaskSkipped logs a task whose outputs were already cached.
func LogTaskSkipped(logger *slog.Logger, taskID string) {
	if logger == nil {
		return
	}
	logger.Debug("task skipped, outputs cached",
		slog.String("task_id", taskID),
	)
}

// LogTaskError logs task failure.
func LogTaskError(logger *slog.Logger, taskID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("task failed",
		slog.String("task_id", taskID),
		slog.String("error", err.Error()),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeName string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node", nodeName),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeName string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node", nodeName),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeName string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node", nodeName),
		slog.String("error", err.Error()),
	)
}

// LogCacheHit logs a cached value being reused instead of recomputed.
func LogCacheHit(logger *slog.Logger, nodeName, key string) {
	if logger == nil {
		return
	}
	logger.Debug("cache hit",
		slog.String("node", nodeName),
		slog.String("key", key),
	)
}

// LogCacheWriteError logs a cache persistence failure (non-fatal).
func LogCacheWriteError(logger *slog.Logger, nodeName string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("cache write failed",
		slog.String("node", nodeName),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
