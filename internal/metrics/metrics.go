// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go-time-archive/internal/model"
)

var (
	NodesArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_nodes_archived_total",
			Help: "Nodes moved into an archive folder.",
		},
		[]string{"mode", "kind"},
	)

	NodesDeferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_nodes_deferred_total",
			Help: "Nodes left in place because they stayed locked through every retry.",
		},
		[]string{"mode"},
	)

	NodesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_nodes_failed_total",
			Help: "Nodes whose archive move failed for a reason other than a lock.",
		},
		[]string{"mode"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_runs_total",
			Help: "Rule invocations by final status.",
		},
		[]string{"mode", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archiver_run_duration_seconds",
			Help:    "Wall time of one rule invocation.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"mode"},
	)

	ScheduledJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archiver_scheduled_jobs",
			Help: "Registered recurring rule invocations.",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_http_requests_total",
			Help: "HTTP requests served by the admin API.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archiver_http_request_duration_seconds",
			Help:    "Latency of admin API requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveStats adds one run's node counters.
func ObserveStats(mode string, stats model.RunStatistics) {
	if stats.FilesArchived > 0 {
		NodesArchived.WithLabelValues(mode, "file").Add(float64(stats.FilesArchived))
	}
	if stats.FoldersArchived > 0 {
		NodesArchived.WithLabelValues(mode, "folder").Add(float64(stats.FoldersArchived))
	}
	if stats.Deferred > 0 {
		NodesDeferred.WithLabelValues(mode).Add(float64(stats.Deferred))
	}
	if stats.Failed > 0 {
		NodesFailed.WithLabelValues(mode).Add(float64(stats.Failed))
	}
}
