package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	ProcessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gifsmith_process_total",
			Help: "Total number of compositing requests by outcome",
		},
		[]string{"outcome", "error_kind"},
	)

	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gifsmith_process_duration_seconds",
			Help:    "End-to-end compositing duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	RetryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gifsmith_retry_total",
			Help: "Total number of step retries by error kind",
		},
		[]string{"error_kind"},
	)
)

// Engine metrics
var (
	EngineLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gifsmith_engine_loads_total",
			Help: "Total number of engine backend loads",
		},
	)

	EngineMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gifsmith_engine_memory_bytes",
			Help: "Current engine memory consumption in bytes",
		},
	)
)

// Cache metrics
var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gifsmith_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gifsmith_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)
)
