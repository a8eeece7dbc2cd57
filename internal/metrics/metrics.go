// Package metrics registers the Prometheus metrics used by the governor.
// Import this package (via blank import) from the server entry point to
// register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Governed-call counters and histograms.
var (
	// CallsTotal counts completed governed calls labelled by upstream,
	// operation, and outcome ("hit", "success", "fallback").
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_calls_total",
			Help: "Total number of governed calls, by outcome.",
		},
		[]string{"upstream", "operation", "outcome"},
	)

	// UpstreamDuration observes upstream call latency in seconds, including
	// queueing, retries, and backoff.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "governor_upstream_duration_seconds",
			Help:    "Governed upstream call duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"upstream", "operation"},
	)

	// CacheHits counts cache hits per upstream.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_cache_hits_total",
			Help: "Total response-cache hits.",
		},
		[]string{"upstream"},
	)

	// CacheMisses counts cache misses per upstream.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_cache_misses_total",
			Help: "Total response-cache misses.",
		},
		[]string{"upstream"},
	)

	// QueueDepth tracks the number of callers waiting for a concurrency slot.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "governor_queue_depth",
			Help: "Callers currently queued for an upstream concurrency slot.",
		},
		[]string{"upstream"},
	)

	// QueueRejections counts calls rejected because the wait queue was full.
	QueueRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_queue_rejections_total",
			Help: "Total calls rejected with a full wait queue.",
		},
		[]string{"upstream"},
	)

	// UpstreamRetries counts re-attempts made after a retryable failure.
	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_upstream_retries_total",
			Help: "Total upstream call re-attempts after retryable failures.",
		},
		[]string{"upstream"},
	)

	// UpstreamFailures counts classified upstream failures after retries.
	UpstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_upstream_failures_total",
			Help: "Total upstream failures by classified kind.",
		},
		[]string{"upstream", "kind"},
	)

	// FallbacksServed counts governed calls that resolved to their fallback.
	FallbacksServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_fallbacks_served_total",
			Help: "Total calls answered with the operation fallback value.",
		},
		[]string{"upstream", "operation"},
	)

	// RateLimitRejections counts requests rejected by the HTTP rate-limit
	// middleware, labelled by key_type ("ip", "api_key").
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_http_rate_limit_rejections_total",
			Help: "Total HTTP requests rejected by rate limiting.",
		},
		[]string{"key_type"},
	)
)
