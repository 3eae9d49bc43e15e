package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh cache reads
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finpath_cache_hits_total",
			Help: "Total number of fresh cache hits",
		},
	)

	// CacheMisses tracks reads for keys with no row
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finpath_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheStale tracks reads that found an expired or malformed row
	CacheStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finpath_cache_stale_total",
			Help: "Total number of cache reads that found a stale entry",
		},
	)

	// CacheWrites tracks successful upserts
	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finpath_cache_writes_total",
			Help: "Total number of successful cache writes",
		},
	)

	// CacheSwept tracks rows removed by the expiry sweep
	CacheSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finpath_cache_swept_total",
			Help: "Total number of expired entries removed by the sweep",
		},
	)

	// CacheErrors tracks store and encoding failures
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finpath_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "sweep", "decode"
	)

	// StoreRequestDuration tracks round trips to the backing store
	StoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finpath_cache_store_duration_seconds",
			Help:    "Cache store round-trip duration by backend and operation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend", "operation"},
	)
)
