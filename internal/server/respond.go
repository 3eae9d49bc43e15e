package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/Sternrassler/finpath-api/internal/service"
	"github.com/Sternrassler/finpath-api/pkg/fetch"
	"github.com/Sternrassler/finpath-api/pkg/logging"
	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

// Error codes returned in the error_code field.
const (
	CodeInvalidInput     = "invalid_input"
	CodeNotFound         = "not_found"
	CodeRateLimited      = "rate_limited"
	CodeUpstreamError    = "upstream_error"
	CodeNotConfigured    = "not_configured"
	CodeRequestTimeout   = "request_timeout"
	CodeInternalError    = "internal_server_error"
	CodeStoreUnavailable = "store_unavailable"
)

// retryAfterSeconds is sent with 429 responses; it matches the provider
// rate-limit window.
const retryAfterSeconds = 60

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
	Path      string `json:"path"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, errorCode, detail string) {
	writeJSON(w, code, ErrorResponse{Detail: detail, ErrorCode: errorCode, Path: r.URL.Path})
}

// writeServiceError maps an error returned by the service layer to a status
// code and error body.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	if status == http.StatusGatewayTimeout {
		HTTPTimeouts.WithLabelValues(routeName(r)).Inc()
	}

	log := logging.FromContext(r.Context())
	ev := log.Warn()
	if status >= 500 && status != http.StatusGatewayTimeout {
		ev = log.Error()
	}
	ev.Err(err).Int("status", status).Str("error_code", code).Msg("Request failed")

	detail := err.Error()
	if status == http.StatusGatewayTimeout {
		detail = "Request timed out"
	}
	writeError(w, r, status, code, detail)
}

func classifyError(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, CodeRequestTimeout
	}
	if errors.Is(err, service.ErrInvalidInput) {
		return http.StatusBadRequest, CodeInvalidInput
	}
	if errors.Is(err, upstream.ErrNotConfigured) || errors.Is(err, fetch.ErrNoSources) {
		return http.StatusServiceUnavailable, CodeNotConfigured
	}

	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		switch {
		case upErr.Class == upstream.ClassRateLimit || upErr.StatusCode == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, CodeRateLimited
		case upErr.StatusCode == http.StatusNotFound:
			return http.StatusNotFound, CodeNotFound
		case upErr.StatusCode >= 400 && upErr.StatusCode < 500:
			return http.StatusUnprocessableEntity, CodeUpstreamError
		case upErr.StatusCode == http.StatusGatewayTimeout:
			return http.StatusGatewayTimeout, CodeRequestTimeout
		}
	}
	if errors.Is(err, fetch.ErrExhausted) {
		return http.StatusBadGateway, CodeUpstreamError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, CodeRequestTimeout
	}
	if errors.Is(err, upstream.ErrEmptyPayload) {
		return http.StatusNotFound, CodeNotFound
	}
	return http.StatusBadGateway, CodeUpstreamError
}
