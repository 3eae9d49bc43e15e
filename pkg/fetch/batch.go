package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/ratelimit"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BatchOptions configures Batch.
type BatchOptions struct {
	// Size is the number of items processed concurrently in one group.
	Size int

	// Delay is slept between groups, not after the last one.
	Delay time.Duration

	// Sleep replaces the sleep function (tests).
	Sleep ratelimit.SleepFunc
}

// DefaultBatchOptions returns groups of 2 with 2s between them.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		Size:  2,
		Delay: 2 * time.Second,
	}
}

// Batch applies fn to items in consecutive groups of opts.Size. Calls within
// a group run concurrently; the first error cancels the group's siblings and
// no later group is started. Results are returned in input order.
func Batch[I, R any](ctx context.Context, items []I, fn func(ctx context.Context, item I) (R, error), opts BatchOptions) ([]R, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultBatchOptions().Size
	}
	if opts.Sleep == nil {
		opts.Sleep = ratelimit.Sleep
	}

	start := time.Now()
	results := make([]R, len(items))
	groups := (len(items) + opts.Size - 1) / opts.Size

	for g := 0; g < groups; g++ {
		lo := g * opts.Size
		hi := lo + opts.Size
		if hi > len(items) {
			hi = len(items)
		}

		eg, gctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			i := i
			eg.Go(func() error {
				r, err := fn(gctx, items[i])
				if err != nil {
					return fmt.Errorf("batch item %d: %w", i, err)
				}
				results[i] = r
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			log.Warn().
				Err(err).
				Str("component", "fetch").
				Int("batch", g+1).
				Int("batches", groups).
				Msg("Batch failed")
			return nil, err
		}
		fetchBatchesTotal.Inc()

		if g < groups-1 && opts.Delay > 0 {
			if err := opts.Sleep(ctx, opts.Delay); err != nil {
				return nil, err
			}
		}
	}

	log.Debug().
		Str("component", "fetch").
		Int("items", len(items)).
		Int("batches", groups).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")
	return results, nil
}
