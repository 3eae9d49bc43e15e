package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/finpath-api/pkg/upstream"
	"github.com/rs/zerolog/log"
)

// ErrNoSources is returned by Chain when called without sources.
var ErrNoSources = errors.New("no sources")

// Source is one way of obtaining a T.
type Source[T any] struct {
	// Name labels logs, metrics and Result.Source.
	Name string

	// Fetch obtains the value.
	Fetch func(ctx context.Context) (T, error)

	// Usable rejects payloads that decoded but carry nothing useful.
	// nil accepts every payload returned without error.
	Usable func(T) bool
}

// ChainResult tries sources in order and returns the first usable result.
// When every source fails the result carries the last error, with status
// no-data if that error means the provider simply had nothing.
func ChainResult[T any](ctx context.Context, sources ...Source[T]) Result[T] {
	if len(sources) == 0 {
		return Failure[T](ErrNoSources)
	}

	var lastErr error
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return Failure[T](err)
		}

		v, err := src.Fetch(ctx)
		if err == nil && src.Usable != nil && !src.Usable(v) {
			err = fmt.Errorf("%s: unusable payload: %w", src.Name, upstream.ErrEmptyPayload)
		}
		if err == nil {
			return OK(v, src.Name)
		}
		lastErr = err

		if i < len(sources)-1 {
			fetchFallbacksTotal.WithLabelValues(src.Name).Inc()
			log.Warn().
				Err(err).
				Str("component", "fetch").
				Str("source", src.Name).
				Str("next", sources[i+1].Name).
				Msg("Source failed, falling back")
		}
	}
	return Failure[T](lastErr)
}

// Chain is ChainResult in (value, error) form.
func Chain[T any](ctx context.Context, sources ...Source[T]) (T, error) {
	res := ChainResult(ctx, sources...)
	return res.Get()
}

// WithFallback calls primary and, only if it fails, secondary.
func WithFallback[T any](ctx context.Context, primary, secondary Source[T]) (T, error) {
	return Chain(ctx, primary, secondary)
}
