// Package metrics exposes the Prometheus registry used by finpath-api.
// All metrics are defined in their respective packages (cache, fetch,
// ratelimit, upstream, server) to keep them next to the code that updates them.
//
// This package provides the /metrics handler and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by finpath-api.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in Gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - finpath_cache_hits_total (Counter): Fresh cache reads
//   - finpath_cache_misses_total (Counter): Reads for keys with no row
//   - finpath_cache_stale_total (Counter): Reads that found an expired or malformed row
//   - finpath_cache_writes_total (Counter): Successful upserts
//   - finpath_cache_swept_total (Counter): Rows removed by the expiry sweep
//   - finpath_cache_errors_total{operation} (Counter): Store and encoding failures
//   - finpath_cache_store_duration_seconds{backend, operation} (Histogram): Store round trips
//
// Rate Limit Metrics (pkg/ratelimit):
//   - finpath_ratelimit_waits_total{upstream} (Counter): Acquires that had to wait
//   - finpath_ratelimit_wait_seconds{upstream} (Histogram): Time spent waiting for capacity
//   - finpath_ratelimit_calls_in_window{upstream} (Gauge): Calls currently in the window
//
// Upstream Metrics (pkg/upstream):
//   - finpath_upstream_requests_total{provider, status} (Counter): Provider requests by HTTP status
//   - finpath_upstream_request_duration_seconds{provider} (Histogram): Provider request duration
//   - finpath_upstream_errors_total{provider, class} (Counter): Errors by class
//     (client, server, rate_limit, network, payload)
//
// Fetch Metrics (pkg/fetch):
//   - finpath_fetch_attempts_total{upstream, outcome} (Counter): Attempts by outcome
//   - finpath_fetch_backoff_seconds{upstream, outcome} (Histogram): Sleep before the next attempt
//   - finpath_fetch_exhausted_total{upstream} (Counter): Calls that exhausted their retries
//   - finpath_fetch_fallbacks_total{from} (Counter): Fallbacks away from a failed source
//   - finpath_fetch_batches_total (Counter): Completed batch groups
//
// HTTP Metrics (internal/server):
//   - finpath_http_requests_total{route, method, status} (Counter): Requests served
//   - finpath_http_request_duration_seconds{route} (Histogram): Handler duration
//   - finpath_http_timeouts_total{route} (Counter): Requests cut off by the timeout middleware
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(finpath_cache_hits_total[5m])) /
//   (sum(rate(finpath_cache_hits_total[5m])) + sum(rate(finpath_cache_misses_total[5m])))
//
//   # Throttled attempts per provider
//   sum by (upstream) (rate(finpath_fetch_attempts_total{outcome="rate_limited"}[5m]))
//
//   # Exhausted upstreams
//   increase(finpath_fetch_exhausted_total[1h]) > 0
//
//   # P95 Provider Latency
//   histogram_quantile(0.95, sum by (le, provider) (rate(finpath_upstream_request_duration_seconds_bucket[5m])))
