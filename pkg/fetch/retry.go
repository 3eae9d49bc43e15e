package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/ratelimit"
	"github.com/Sternrassler/finpath-api/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrExhausted is returned when every retry attempt failed. The returned
// error also wraps the last upstream error.
var ErrExhausted = errors.New("retry attempts exhausted")

// Retry defaults.
const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 2 * time.Second
	DefaultFlatDelay  = time.Second
	DefaultMaxJitter  = 500 * time.Millisecond
)

// maxBackoff caps Backoff so large attempts or base delays cannot overflow.
const maxBackoff = 24 * time.Hour

// Retrier calls an upstream with rate-limit gating and backoff.
type Retrier struct {
	maxRetries int
	baseDelay  time.Duration
	flatDelay  time.Duration
	maxJitter  time.Duration

	window    *ratelimit.Window
	matcher   upstream.Matcher
	sleep     ratelimit.SleepFunc
	jitter    func() time.Duration
	onAttempt func(Attempt)
	now       func() time.Time
	logger    zerolog.Logger
}

// RetryOption configures a Retrier.
type RetryOption func(*Retrier)

// WithMaxRetries sets the total number of attempts.
func WithMaxRetries(n int) RetryOption {
	return func(r *Retrier) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithBaseDelay sets the base of the exponential rate-limit backoff.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(r *Retrier) {
		if d > 0 {
			r.baseDelay = d
		}
	}
}

// WithFlatDelay sets the delay before retrying a non-throttling transient error.
func WithFlatDelay(d time.Duration) RetryOption {
	return func(r *Retrier) { r.flatDelay = d }
}

// WithWindow gates every attempt on w.
func WithWindow(w *ratelimit.Window) RetryOption {
	return func(r *Retrier) { r.window = w }
}

// WithMatcher sets the rate-limit matcher used to classify failures.
func WithMatcher(m upstream.Matcher) RetryOption {
	return func(r *Retrier) { r.matcher = m }
}

// WithSleep replaces the sleep function.
func WithSleep(sleep ratelimit.SleepFunc) RetryOption {
	return func(r *Retrier) { r.sleep = sleep }
}

// WithJitter replaces the jitter source. It must return a value in [0, max jitter).
func WithJitter(jitter func() time.Duration) RetryOption {
	return func(r *Retrier) { r.jitter = jitter }
}

// WithOnAttempt registers a hook called after every attempt.
func WithOnAttempt(fn func(Attempt)) RetryOption {
	return func(r *Retrier) { r.onAttempt = fn }
}

// WithRetryLogger sets the logger.
func WithRetryLogger(logger zerolog.Logger) RetryOption {
	return func(r *Retrier) { r.logger = logger }
}

// NewRetrier creates a Retrier with the defaults: 5 attempts, 2s base delay,
// 1s flat delay, jitter in [0, 0.5s).
func NewRetrier(opts ...RetryOption) *Retrier {
	r := &Retrier{
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		flatDelay:  DefaultFlatDelay,
		maxJitter:  DefaultMaxJitter,
		matcher:    upstream.DefaultMatcher(),
		sleep:      ratelimit.Sleep,
		now:        time.Now,
		logger:     log.With().Str("component", "fetch").Logger(),
	}
	r.jitter = func() time.Duration {
		return time.Duration(rand.Int63n(int64(r.maxJitter)))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxRetries returns the total number of attempts.
func (r *Retrier) MaxRetries() int {
	return r.maxRetries
}

// Backoff returns the rate-limit delay after the given 0-based attempt,
// without jitter: BaseDelay * 2^attempt, capped at 24 hours.
func (r *Retrier) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	if r.baseDelay > maxBackoff>>uint(attempt) {
		return maxBackoff
	}
	return r.baseDelay * time.Duration(int64(1)<<uint(attempt))
}

// delay returns the sleep before the next attempt for outcome.
func (r *Retrier) delay(attempt int, outcome Outcome) time.Duration {
	if outcome == OutcomeRateLimited {
		return r.Backoff(attempt) + r.jitter()
	}
	return r.flatDelay
}

// Do calls call until it succeeds, fails permanently, or MaxRetries attempts
// have been made. name labels logs and metrics.
func (r *Retrier) Do(ctx context.Context, name string, call func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.window != nil {
			if err := r.window.Acquire(ctx); err != nil {
				return err
			}
		}

		err := call(ctx)
		outcome := classify(err, r.matcher)
		fetchAttemptsTotal.WithLabelValues(name, string(outcome)).Inc()

		at := Attempt{
			Number:   attempt + 1,
			Upstream: name,
			Outcome:  outcome,
			Err:      err,
			Time:     r.now(),
		}

		switch outcome {
		case OutcomeSuccess:
			r.report(at)
			if attempt > 0 {
				r.logger.Info().
					Str("upstream", name).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		case OutcomePermanent:
			r.report(at)
			return err
		}

		lastErr = err
		if attempt == r.maxRetries-1 {
			r.report(at)
			break
		}

		wait := r.delay(attempt, outcome)
		at.Delay = wait
		r.report(at)
		fetchBackoffSeconds.WithLabelValues(name, string(outcome)).Observe(wait.Seconds())

		r.logger.Warn().
			Err(err).
			Str("upstream", name).
			Str("outcome", string(outcome)).
			Int("attempt", attempt+1).
			Int("max_attempts", r.maxRetries).
			Dur("backoff", wait).
			Msg("Upstream call failed, retrying")

		if err := r.sleep(ctx, wait); err != nil {
			r.logger.Warn().
				Str("upstream", name).
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return err
		}
	}

	fetchExhaustedTotal.WithLabelValues(name).Inc()
	r.logger.Error().
		Err(lastErr).
		Str("upstream", name).
		Int("max_attempts", r.maxRetries).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhausted, r.maxRetries, lastErr)
}

func (r *Retrier) report(at Attempt) {
	if r.onAttempt != nil {
		r.onAttempt(at)
	}
}

// CallWithBackoff is Do for calls that return a value.
func CallWithBackoff[T any](ctx context.Context, r *Retrier, name string, call func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, name, func(ctx context.Context) error {
		v, err := call(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
