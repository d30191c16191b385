package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsClaimed          = prometheus.NewCounter(prometheus.CounterOpts{Name: "batch_jobs_claimed_total", Help: "Jobs claimed by the worker"})
	JobsCompleted        = prometheus.NewCounter(prometheus.CounterOpts{Name: "batch_jobs_completed_total", Help: "Jobs completed successfully"})
	JobsFailed           = prometheus.NewCounter(prometheus.CounterOpts{Name: "batch_jobs_failed_total", Help: "Jobs that ended in failure"})
	JobsCancelled        = prometheus.NewCounter(prometheus.CounterOpts{Name: "batch_jobs_cancelled_total", Help: "Jobs failed by a cancellation request"})
	ChildJobsQueued      = prometheus.NewCounter(prometheus.CounterOpts{Name: "batch_jobs_children_queued_total", Help: "Child jobs created by fan-out jobs"})
	NeighborhoodsWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "neighborhoods_written_total", Help: "Neighborhood records inserted or updated"})
	PendingDepthGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "batch_jobs_pending_depth", Help: "Jobs currently pending"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsClaimed,
			JobsCompleted,
			JobsFailed,
			JobsCancelled,
			ChildJobsQueued,
			NeighborhoodsWritten,
			PendingDepthGauge,
		)
	})
	return promhttp.Handler()
}
