package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests tracks requests by route template, method and status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finpath_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration tracks handler duration per route template
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finpath_http_request_duration_seconds",
			Help:    "HTTP handler duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)

	// HTTPTimeouts tracks requests whose deadline expired
	HTTPTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finpath_http_timeouts_total",
			Help: "Total number of requests that hit the request timeout",
		},
		[]string{"route"},
	)
)
