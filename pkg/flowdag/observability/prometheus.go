package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements MetricsRecorder against a Prometheus
// registry, for deployments that scrape rather than push. It exposes the
// same node/task/run instruments as the OTel recorder.
type PrometheusRecorder struct {
	nodeExecutions *prometheus.CounterVec
	nodeLatency    *prometheus.HistogramVec
	taskExecutions *prometheus.CounterVec
	taskLatency    *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runLatency     prometheus.Histogram
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder registered with the given
// registerer; pass nil to use the global default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		nodeExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdag_node_executions_total",
				Help: "Total number of node executions.",
			},
			[]string{"node", "status"},
		),
		nodeLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowdag_node_duration_seconds",
				Help:    "Node execution time.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node"},
		),
		taskExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdag_task_executions_total",
				Help: "Total number of task executions.",
			},
			[]string{"task_id", "status"},
		),
		taskLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowdag_task_duration_seconds",
				Help:    "Task execution time.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task_id"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdag_runs_total",
				Help: "Total number of dataflow runs.",
			},
			[]string{"status"},
		),
		runLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowdag_run_duration_seconds",
				Help:    "Dataflow run time.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordNodeExecution implements MetricsRecorder.
func (r *PrometheusRecorder) RecordNodeExecution(_ context.Context, nodeName string, duration time.Duration, err error) {
	r.nodeExecutions.WithLabelValues(nodeName, statusLabel(err)).Inc()
	r.nodeLatency.WithLabelValues(nodeName).Observe(duration.Seconds())
}

// RecordTaskExecution implements MetricsRecorder.
func (r *PrometheusRecorder) RecordTaskExecution(_ context.Context, taskID string, duration time.Duration, err error) {
	r.taskExecutions.WithLabelValues(taskID, statusLabel(err)).Inc()
	r.taskLatency.WithLabelValues(taskID).Observe(duration.Seconds())
}

// RecordRun implements MetricsRecorder.
func (r *PrometheusRecorder) RecordRun(_ context.Context, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.runs.WithLabelValues(status).Inc()
	r.runLatency.Observe(duration.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
