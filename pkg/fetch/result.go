package fetch

import (
	"errors"

	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

// Status distinguishes a successful fetch from "the provider has nothing"
// and "the call failed".
type Status string

const (
	StatusOK     Status = "ok"
	StatusNoData Status = "no_data"
	StatusFailed Status = "failed"
)

// Result is the outcome of a fetch.
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
	// Source names the source that produced Value.
	Source string
}

// OK returns a successful result.
func OK[T any](value T, source string) Result[T] {
	return Result[T]{Status: StatusOK, Value: value, Source: source}
}

// Failure returns a failed or no-data result depending on err.
func Failure[T any](err error) Result[T] {
	status := StatusFailed
	if errors.Is(err, upstream.ErrEmptyPayload) {
		status = StatusNoData
	}
	return Result[T]{Status: status, Err: err}
}

// Ok reports whether the fetch succeeded.
func (r Result[T]) Ok() bool {
	return r.Status == StatusOK
}

// Get returns the value and error in the usual Go form.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}
