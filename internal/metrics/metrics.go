package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RateLimitedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of rate-limited requests",
		},
	)

	// Registry

	LinksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "links_created_total",
			Help: "Total number of links created",
		},
		[]string{"code_source"}, // custom, generated
	)

	CodeConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "code_conflicts_total",
			Help: "Short code collisions observed during creation",
		},
		[]string{"code_source", "stage"}, // stage: advisory, constraint
	)

	CodeGenerationExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "code_generation_exhausted_total",
			Help: "Creations that ran out of code generation attempts",
		},
	)

	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirects_total",
			Help: "Redirect lookups by result",
		},
		[]string{"result"}, // found, not_found, invalid
	)

	// Clicks

	ClicksRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicks_recorded_total",
			Help: "Click increments applied to the store",
		},
	)

	ClicksFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicks_failed_total",
			Help: "Click increments that could not be applied",
		},
		[]string{"reason"}, // not_found, unavailable
	)

	ClicksOverflowTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicks_overflow_total",
			Help: "Clicks handled outside the worker pool because the queue was full",
		},
	)

	ClickQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "click_queue_depth",
			Help: "Click events waiting in the worker pool queue",
		},
	)

	// Cache

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	StaleCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_cache_evictions_total",
			Help: "Cache entries removed because the link was deleted while a redirect filled the cache",
		},
	)

	// Store

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Link store failures by operation",
		},
		[]string{"operation"},
	)
)
