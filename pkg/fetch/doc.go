// Package fetch orchestrates calls to upstream providers: ordered fallback
// between sources, retry with exponential backoff for throttled calls, and
// sequential batches with a pause between them.
//
// # Retry
//
// A Retrier drives one logical upstream fetch through these states:
//
//	NOT_STARTED -> ATTEMPTING -> SUCCEEDED
//	                          -> RATE_LIMITED -> sleep(base*2^n + jitter) -> ATTEMPTING
//	                          -> OTHER_ERROR  -> sleep(flat)              -> ATTEMPTING
//	                          -> EXHAUSTED (after MaxRetries attempts)
//
// Permanent failures (client errors, malformed or empty payloads, context
// cancellation) return immediately without retry. When a ratelimit.Window is
// attached, every attempt first waits for capacity and is recorded before the
// upstream is contacted.
//
//	retrier := fetch.NewRetrier(fetch.WithWindow(yahooWindow), fetch.WithMatcher(yahoo.Matcher()))
//	quote, err := fetch.CallWithBackoff(ctx, retrier, "yahoo", func(ctx context.Context) (*upstream.Quote, error) {
//	    return yahoo.Quote(ctx, symbol)
//	})
//	if errors.Is(err, fetch.ErrExhausted) {
//	    // serve a static fallback
//	}
//
// # Fallback
//
// Chain tries sources in order and returns the first usable payload:
//
//	quote, err := fetch.WithFallback(ctx,
//	    fetch.Source[*upstream.Quote]{Name: "fmp", Fetch: fmpQuote},
//	    fetch.Source[*upstream.Quote]{Name: "yahoo", Fetch: yahooQuote},
//	)
//
// # Batch
//
// Batch processes items in consecutive groups (default 2), concurrently
// within a group, sleeping between groups (default 2s). Output order matches
// input order.
//
// # Metrics
//
//   - finpath_fetch_attempts_total{upstream, outcome}
//   - finpath_fetch_backoff_seconds{upstream, outcome}
//   - finpath_fetch_exhausted_total{upstream}
//   - finpath_fetch_fallbacks_total{from}
//   - finpath_fetch_batches_total
package fetch
