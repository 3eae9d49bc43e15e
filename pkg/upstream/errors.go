package upstream

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by provider clients.
var (
	// ErrEmptyPayload is returned when a provider answered successfully but
	// the payload carries no usable data (e.g. an empty quote object).
	ErrEmptyPayload = errors.New("empty payload")

	// ErrResponseTooLarge is returned when a response body exceeds the read cap.
	ErrResponseTooLarge = errors.New("response body too large")

	// ErrNotConfigured is returned when a provider is called without credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

// Class represents a classification of upstream failures.
type Class string

const (
	// ClassClient represents 4xx client errors other than rate limiting.
	ClassClient Class = "client"

	// ClassServer represents 5xx server errors.
	ClassServer Class = "server"

	// ClassRateLimit represents throttling, whether signalled by status code
	// or by a message embedded in the body.
	ClassRateLimit Class = "rate_limit"

	// ClassNetwork represents transport and timeout errors.
	ClassNetwork Class = "network"

	// ClassPayload represents an undecodable body or a provider-reported error field.
	ClassPayload Class = "payload"
)

// Error is a classified upstream failure.
type Error struct {
	Provider   string
	StatusCode int
	Class      Class
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s error (status %d): %s: %v",
			e.Provider, e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s error (status %d): %s",
		e.Provider, e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of err, or "" if err is not an *Error.
func ClassOf(err error) Class {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Class
	}
	return ""
}

// IsRateLimited reports whether err was classified as throttling.
func IsRateLimited(err error) bool {
	return ClassOf(err) == ClassRateLimit
}

// IsPermanent reports whether retrying err cannot help: client and payload
// errors, empty payloads, missing configuration and context termination.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrEmptyPayload) || errors.Is(err, ErrNotConfigured) {
		return true
	}
	switch ClassOf(err) {
	case ClassClient, ClassPayload:
		return true
	default:
		return false
	}
}

// shouldRetry determines if an error class is worth retrying.
func shouldRetry(class Class) bool {
	switch class {
	case ClassServer, ClassRateLimit, ClassNetwork:
		return true
	default:
		return false
	}
}

// Retryable reports whether err is a transient upstream failure.
func Retryable(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	class := ClassOf(err)
	if class == "" {
		// Unclassified errors from non-HTTP sources are treated as transient
		return true
	}
	return shouldRetry(class)
}
