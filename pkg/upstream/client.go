// Package upstream provides thin HTTP clients for the third-party market data,
// news, AI and vector-search providers, together with a shared error
// taxonomy used by the fetch orchestrator to decide what to retry.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream calls.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpath_upstream_requests_total",
		Help: "Total upstream requests by provider and status",
	}, []string{"provider", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finpath_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by provider",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"provider"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpath_upstream_errors_total",
		Help: "Total upstream errors by provider and class",
	}, []string{"provider", "class"})
)

// DefaultTimeout bounds a single upstream HTTP exchange.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error body is kept in the error message.
const maxErrorBody = 512

// maxResponseBody caps how much of any response body is read.
var maxResponseBody int64 = 16 << 20

// HTTPClient is the JSON transport shared by all provider clients.
type HTTPClient struct {
	provider string
	baseURL  string
	hc       *http.Client
	matcher  Matcher
	headers  http.Header
	logger   zerolog.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL overrides the provider base URL (tests point it at httptest servers).
func WithBaseURL(base string) Option {
	return func(c *HTTPClient) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithMatcher replaces the rate-limit matcher.
func WithMatcher(m Matcher) Option {
	return func(c *HTTPClient) { c.matcher = m }
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *HTTPClient) { c.headers.Set(key, value) }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *HTTPClient) { c.logger = logger }
}

// NewHTTPClient creates a transport for the named provider.
func NewHTTPClient(provider, baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		hc:       &http.Client{Timeout: DefaultTimeout},
		matcher:  DefaultMatcher(),
		headers:  make(http.Header),
		logger:   log.With().Str("component", "upstream").Str("provider", provider).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the provider name.
func (c *HTTPClient) Provider() string {
	return c.provider
}

// Matcher returns the rate-limit matcher.
func (c *HTTPClient) Matcher() Matcher {
	return c.matcher
}

// GetJSON performs a GET of path with query and decodes the JSON body into dst.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query url.Values, dst any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, dst)
}

// PostJSON encodes body as JSON, POSTs it to path and decodes the response into dst.
// A nil dst discards the response body.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, query url.Values, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return c.newError(0, ClassPayload, "encode request body", err)
	}
	return c.do(ctx, http.MethodPost, path, query, payload, dst)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body []byte, dst any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return c.newError(0, ClassClient, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	upstreamRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(c.provider, "network_error").Inc()
		// Caller cancellation is not an upstream failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return c.newError(0, ClassNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(c.provider, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return c.newError(resp.StatusCode, ClassNetwork, "read body", err)
	}
	if int64(len(raw)) > maxResponseBody {
		return c.newError(resp.StatusCode, ClassPayload, "read body", ErrResponseTooLarge)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = resp.Status
		}
		return c.newError(resp.StatusCode, c.classifyStatus(resp.StatusCode, msg), msg, nil)
	}

	if dst == nil || len(bytes.TrimSpace(raw)) == 0 {
		if dst != nil {
			return c.newError(resp.StatusCode, ClassPayload, "empty body", ErrEmptyPayload)
		}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return c.newError(resp.StatusCode, ClassPayload, "decode response", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Upstream request completed")
	return nil
}

// classifyStatus maps an HTTP error status to a Class, consulting the matcher
// for throttling first.
func (c *HTTPClient) classifyStatus(status int, message string) Class {
	switch {
	case c.matcher.Matches(status, message):
		return ClassRateLimit
	case status >= 500, status == http.StatusRequestTimeout:
		return ClassServer
	case status >= 400:
		return ClassClient
	default:
		return ClassPayload
	}
}

// newError builds a classified *Error and records it.
func (c *HTTPClient) newError(status int, class Class, message string, err error) *Error {
	upstreamErrorsTotal.WithLabelValues(c.provider, string(class)).Inc()
	c.logger.Debug().
		Int("status_code", status).
		Str("error_class", string(class)).
		Str("message", message).
		Msg("Upstream error classified")
	return &Error{
		Provider:   c.provider,
		StatusCode: status,
		Class:      class,
		Message:    message,
		Err:        err,
	}
}

// PayloadError reports a provider-level error carried in a 200 response body.
// The matcher decides whether the message means throttling.
func (c *HTTPClient) PayloadError(message string) *Error {
	class := ClassPayload
	if c.matcher.Matches(0, message) {
		class = ClassRateLimit
	}
	return c.newError(http.StatusOK, class, message, nil)
}

// Empty wraps ErrEmptyPayload with the provider and a description of what was missing.
func (c *HTTPClient) Empty(what string) error {
	return fmt.Errorf("%s: %s: %w", c.provider, what, ErrEmptyPayload)
}

// requireKey returns ErrNotConfigured when key is blank.
func requireKey(provider, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%s: %w", provider, ErrNotConfigured)
	}
	return nil
}

// isStatus reports whether err is an *Error with the given status code.
func isStatus(err error, status int) bool {
	var upErr *Error
	return errors.As(err, &upErr) && upErr.StatusCode == status
}
