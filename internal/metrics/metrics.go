// Package metrics provides Prometheus instrumentation for the bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monkfuse_operations_total",
			Help: "Filesystem operations by kind and outcome",
		},
		[]string{"op", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monkfuse_operation_duration_seconds",
			Help:    "Wall time per filesystem operation, including the protocol round-trip",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monkfuse_bytes_downloaded_total",
			Help: "Bytes retrieved from the remote store",
		},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monkfuse_bytes_uploaded_total",
			Help: "Bytes stored to the remote store",
		},
	)

	dirCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monkfuse_dir_cache_hits_total",
			Help: "Directory listings served from the cache",
		},
	)

	dirCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monkfuse_dir_cache_misses_total",
			Help: "Directory listings fetched from the server",
		},
	)

	sessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monkfuse_sessions_opened_total",
			Help: "Protocol sessions successfully established",
		},
	)

	sessionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monkfuse_session_failures_total",
			Help: "Failed attempts to establish a protocol session",
		},
	)
)

// ObserveOp records one completed filesystem operation.
func ObserveOp(op, outcome string, d time.Duration) {
	operationsTotal.WithLabelValues(op, outcome).Inc()
	operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// AddDownloaded records bytes retrieved from the server.
func AddDownloaded(n int64) { bytesDownloaded.Add(float64(n)) }

// AddUploaded records bytes stored to the server.
func AddUploaded(n int64) { bytesUploaded.Add(float64(n)) }

// DirCacheHit records a listing served from the cache.
func DirCacheHit() { dirCacheHits.Inc() }

// DirCacheMiss records a listing fetched from the server.
func DirCacheMiss() { dirCacheMisses.Inc() }

// SessionOpened records an established session.
func SessionOpened() { sessionsOpened.Inc() }

// SessionFailed records a failed session dial.
func SessionFailed() { sessionFailures.Inc() }

// Serve exposes /metrics on addr. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
