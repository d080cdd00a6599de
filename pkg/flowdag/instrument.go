package flowdag

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/randalmurphal/flowdag/pkg/flowdag/observability"
)

// instrumentedAdapter wraps a GraphAdapter with per-node logging,
// metrics, and tracing. The driver installs one per run, so node events
// report under that run's context regardless of which execution path or
// executor invokes the node.
type instrumentedAdapter struct {
	base    GraphAdapter
	ctx     context.Context
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

func (a *instrumentedAdapter) CheckInputType(expected reflect.Type, value any) bool {
	return a.base.CheckInputType(expected, value)
}

func (a *instrumentedAdapter) ExecuteNode(n *Node, kwargs map[string]any) (any, error) {
	name := n.Name()
	observability.LogNodeStart(a.logger, name)
	done := observability.TimedOperation()
	_, span := a.spans.StartNodeSpan(a.ctx, name)

	v, err := a.base.ExecuteNode(n, kwargs)

	durationMs := done()
	a.metrics.RecordNodeExecution(a.ctx, name, msToDuration(durationMs), err)
	a.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogNodeError(a.logger, name, err)
		return nil, err
	}
	observability.LogNodeComplete(a.logger, name, durationMs)
	return v, nil
}

func (a *instrumentedAdapter) BuildResult(outputs map[string]any) (any, error) {
	return a.base.BuildResult(outputs)
}

// instrument wraps the driver's adapter for one run. With no logger and
// only no-op recorders the adapter passes through untouched, keeping the
// uninstrumented path free of per-node overhead.
func (d *Driver) instrument(ctx context.Context, adapter GraphAdapter) GraphAdapter {
	_, noopMetrics := d.metrics.(observability.NoopMetrics)
	_, noopSpans := d.spans.(observability.NoopSpanManager)
	if d.logger == nil && noopMetrics && noopSpans {
		return adapter
	}
	return &instrumentedAdapter{
		base:    adapter,
		ctx:     ctx,
		logger:  d.logger,
		metrics: d.metrics,
		spans:   d.spans,
	}
}
