// Package metrics registers the Prometheus collectors shared by the three
// binaries. Collectors are package-level so the pipeline, indexer, and
// query service can record without plumbing a registry through every layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsProcessed counts records the processor accepted.
	DocumentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_documents_processed_total",
		Help: "Raw records successfully processed into documents.",
	})

	// DocumentsRejected counts records the processor rejected, by reason.
	DocumentsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_documents_rejected_total",
		Help: "Raw records rejected before emitting a document.",
	}, []string{"reason"})

	// ChunksProduced counts chunks emitted by the processor.
	ChunksProduced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_chunks_produced_total",
		Help: "Document chunks emitted by the processor.",
	})

	// FilesProcessed counts queue files the indexer consumed, by outcome.
	FilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_files_processed_total",
		Help: "Queue files consumed by the indexer control loop.",
	}, []string{"outcome"})

	// ItemsIndexed counts items committed by bulk flushes.
	ItemsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_items_indexed_total",
		Help: "Queue items committed to the index store.",
	}, []string{"type"})

	// BulkFlushes counts flusher bulk calls, by outcome.
	BulkFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_bulk_flushes_total",
		Help: "Bulk calls issued by the flusher.",
	}, []string{"outcome"})

	// OfflineMode reports whether the indexer is in offline mode.
	OfflineMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexer_offline_mode",
		Help: "1 while the index store is unreachable, else 0.",
	})

	// QueueDepth reports the current queue depth per lane.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "indexer_queue_depth",
		Help: "Items waiting in the dual-priority queue.",
	}, []string{"priority"})

	// SearchRequests counts search calls, by cache outcome.
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Search calls served, labelled by cache hit or miss.",
	}, []string{"cache"})

	// SearchLatency observes end-to-end search latency.
	SearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_latency_seconds",
		Help:    "End-to-end search latency.",
		Buckets: prometheus.DefBuckets,
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// GinMiddleware records request counts and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
