package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpath_fetch_attempts_total",
		Help: "Total upstream fetch attempts by upstream and outcome",
	}, []string{"upstream", "outcome"})

	fetchBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finpath_fetch_backoff_seconds",
		Help:    "Backoff slept before a retry by upstream and outcome",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"upstream", "outcome"})

	fetchExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpath_fetch_exhausted_total",
		Help: "Total fetches that used up all retry attempts by upstream",
	}, []string{"upstream"})

	fetchFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpath_fetch_fallbacks_total",
		Help: "Total fallbacks to the next source by failing source",
	}, []string{"from"})

	fetchBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finpath_fetch_batches_total",
		Help: "Total batches processed",
	})
)
