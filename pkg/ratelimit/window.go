// Package ratelimit implements a process-local sliding-window call limiter
// used to stay under upstream provider quotas (e.g. 5 calls per 60s).
//
// The window is not shared between processes: N replicas together may make
// N times the configured number of calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults match the secondary quote provider's observed quota.
const (
	DefaultLimit  = 5
	DefaultWindow = 60 * time.Second
	DefaultBuffer = 500 * time.Millisecond
)

// Prometheus metrics for window gating.
var (
	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpath_ratelimit_waits_total",
		Help: "Total number of calls delayed because the window was full",
	}, []string{"upstream"})

	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finpath_ratelimit_wait_seconds",
		Help:    "Time spent waiting for window capacity",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60},
	}, []string{"upstream"})

	rateLimitCallsInWindow = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finpath_ratelimit_calls_in_window",
		Help: "Calls recorded in the current window",
	}, []string{"upstream"})
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Window is a sliding-window limiter: at most Limit calls are recorded
// within any Window-long interval. Safe for concurrent use.
type Window struct {
	name   string
	limit  int
	window time.Duration
	buffer time.Duration

	mu    sync.Mutex
	calls []time.Time

	now    func() time.Time
	sleep  SleepFunc
	logger zerolog.Logger
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// WithSleep replaces the sleep function.
func WithSleep(sleep SleepFunc) Option {
	return func(w *Window) { w.sleep = sleep }
}

// WithBuffer sets the extra time slept past the window edge.
func WithBuffer(d time.Duration) Option {
	return func(w *Window) { w.buffer = d }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Window) { w.logger = logger }
}

// NewWindow creates a window allowing limit calls per window for the named upstream.
func NewWindow(name string, limit int, window time.Duration, opts ...Option) *Window {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	w := &Window{
		name:   name,
		limit:  limit,
		window: window,
		buffer: DefaultBuffer,
		calls:  make([]time.Time, 0, limit),
		now:    time.Now,
		sleep:  Sleep,
		logger: log.With().Str("component", "ratelimit").Str("upstream", name).Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the upstream name.
func (w *Window) Name() string {
	return w.name
}

// prune drops timestamps that have left the window. Caller holds mu.
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}

// check prunes and reports whether a call may proceed now, and if not how
// long until the oldest call leaves the window. Caller holds mu.
func (w *Window) check(now time.Time) (bool, time.Duration) {
	w.prune(now)
	if len(w.calls) < w.limit {
		return true, 0
	}
	wait := w.calls[0].Add(w.window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return false, wait
}

// Check prunes expired timestamps and reports whether a call may proceed.
// When it may not, wait is the time until the oldest recorded call expires.
func (w *Window) Check() (allowed bool, wait time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.check(w.now())
}

// Record appends the current time to the window.
func (w *Window) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, w.now())
	rateLimitCallsInWindow.WithLabelValues(w.name).Set(float64(len(w.calls)))
}

// Acquire blocks until the window has capacity, then records the call.
// The timestamp is recorded before the caller contacts the upstream, so
// failed calls count against the quota too. Returns ctx.Err() if the
// context ends while waiting.
func (w *Window) Acquire(ctx context.Context) error {
	var waited time.Duration
	for {
		w.mu.Lock()
		now := w.now()
		allowed, wait := w.check(now)
		if allowed {
			w.calls = append(w.calls, now)
			rateLimitCallsInWindow.WithLabelValues(w.name).Set(float64(len(w.calls)))
			w.mu.Unlock()
			if waited > 0 {
				rateLimitWaitSeconds.WithLabelValues(w.name).Observe(waited.Seconds())
			}
			return nil
		}
		w.mu.Unlock()

		sleepFor := wait + w.buffer
		rateLimitWaitsTotal.WithLabelValues(w.name).Inc()
		w.logger.Warn().
			Int("limit", w.limit).
			Dur("window", w.window).
			Dur("wait", sleepFor).
			Msg("Rate limit window full, waiting")

		if err := w.sleep(ctx, sleepFor); err != nil {
			return err
		}
		waited += sleepFor
	}
}

// Len returns the number of calls currently in the window.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.calls)
}

// State returns a snapshot of the window.
func (w *Window) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)

	s := State{
		Upstream:  w.name,
		Limit:     w.limit,
		Window:    w.window,
		Used:      len(w.calls),
		Remaining: w.limit - len(w.calls),
	}
	if len(w.calls) > 0 {
		s.ResetAt = w.calls[0].Add(w.window)
	} else {
		s.ResetAt = now
	}
	s.UpdateHealth()
	return s
}
