// Package metrics exposes the Prometheus gauges/counters wired into the
// worker pool and orchestrator, adapted from the teacher's much larger
// internal/metrics package and trimmed to a handful of series. Every
// series except QueueDepth is updated by the worker pool or orchestrator.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WorkerTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ulp_worker_tasks_total",
		Help: "Messages processed by the worker pool, by message kind and outcome.",
	}, []string{"kind", "outcome"})

	WorkerActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ulp_worker_active",
		Help: "Number of workers currently processing a message.",
	})

	BulkRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ulp_bulk_retries_total",
		Help: "Bulk submissions retried after an es_rejected_execution_exception.",
	})

	JobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ulp_jobs_completed_total",
		Help: "Jobs that reached the Done state.",
	})

	// QueueDepth is registered but no component sets it, so it always
	// reports no samples.
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ulp_queue_depth",
		Help: "Depth of an internal orchestrator queue.",
	}, []string{"queue"})
)

// Register adds every series to reg. Call once at startup; tests
// construct their own registry to avoid cross-test collisions.
func Register(reg *prometheus.Registry) {
	reg.MustRegister(WorkerTasksTotal, WorkerActive, BulkRetriesTotal, JobsCompletedTotal, QueueDepth)
}
