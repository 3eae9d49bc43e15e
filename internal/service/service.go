// Package service implements the route-level orchestration behind the HTTP
// API: cache lookup, provider fallback, degraded responses, and the
// FinGenie chat assistant.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/cache"
	"github.com/Sternrassler/finpath-api/pkg/fetch"
	"github.com/Sternrassler/finpath-api/pkg/logging"
	"github.com/Sternrassler/finpath-api/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// Cache TTLs per endpoint.
const (
	TTLStock        = 15 * time.Minute
	TTLIntraday     = 15 * time.Minute
	TTLDaily        = 24 * time.Hour
	TTLOverview     = 7 * 24 * time.Hour
	TTLMarket       = 15 * time.Minute
	TTLNews         = 30 * time.Minute
	TTLAnalysis     = 30 * time.Minute
	TTLTechnical    = time.Hour
	TTLFundamentals = 24 * time.Hour
)

// ErrUnavailable is returned when neither a provider, the cache nor a
// previously served response can answer a request.
var ErrUnavailable = errors.New("data unavailable")

// ErrInvalidInput is returned for malformed request parameters.
var ErrInvalidInput = errors.New("invalid input")

// Deps are the collaborators of a Service. Unset providers are skipped.
type Deps struct {
	Cache        *cache.Manager
	AlphaVantage AlphaVantageAPI
	FMP          FMPAPI
	Yahoo        YahooAPI
	NewsAPI      NewsAPIClient
	LLM          LLM
	Vectors      VectorIndex

	// YahooWindow gates every Yahoo call. It is also reported by Health.
	YahooWindow *ratelimit.Window

	// Retrier wraps Yahoo calls. Defaults to fetch.NewRetrier gated on
	// YahooWindow with the Yahoo matcher.
	Retrier *fetch.Retrier

	Batch fetch.BatchOptions
}

// Service answers API requests.
type Service struct {
	cache   *cache.Manager
	av      AlphaVantageAPI
	fmp     FMPAPI
	yahoo   YahooAPI
	news    NewsAPIClient
	llm     LLM
	vectors VectorIndex

	yahooWindow *ratelimit.Window
	retrier     *fetch.Retrier
	batch       fetch.BatchOptions

	lastGood *lastGood
	chats    *chatStore

	now     func() time.Time
	started time.Time
	logger  zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for timestamps and the market session.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a Service. It panics if d.Cache is nil.
func New(d Deps, opts ...Option) *Service {
	if d.Cache == nil {
		panic("service: cache manager is required")
	}
	if d.YahooWindow == nil {
		d.YahooWindow = ratelimit.NewWindow("yahoo", ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	}
	if d.Retrier == nil {
		ropts := []fetch.RetryOption{fetch.WithWindow(d.YahooWindow)}
		if d.Yahoo != nil {
			ropts = append(ropts, fetch.WithMatcher(d.Yahoo.Matcher()))
		}
		d.Retrier = fetch.NewRetrier(ropts...)
	}
	if d.Batch.Size <= 0 {
		d.Batch = fetch.DefaultBatchOptions()
	}

	s := &Service{
		cache:       d.Cache,
		av:          d.AlphaVantage,
		fmp:         d.FMP,
		yahoo:       d.Yahoo,
		news:        d.NewsAPI,
		llm:         d.LLM,
		vectors:     d.Vectors,
		yahooWindow: d.YahooWindow,
		retrier:     d.Retrier,
		batch:       d.Batch,
		lastGood:    newLastGood(1024),
		chats:       newChatStore(maxHistory),
		now:         time.Now,
		logger:      logging.NewLogger("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	return s
}

// Cache returns the cache manager.
func (s *Service) Cache() *cache.Manager {
	return s.cache
}

// cached answers key from the cache, then from fn, then from the last value
// served for key. Errors are returned only when all three fail.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	v, _, err := cache.Fetch(ctx, s.cache, key, ttl, fn)
	if err == nil {
		s.lastGood.put(key, v, s.now())
		return v, nil
	}

	var stale T
	if at, ok := s.lastGood.get(key, &stale); ok {
		logging.FromContext(ctx).Warn().
			Err(err).
			Str("component", "service").
			Str("key", key).
			Time("stored_at", at).
			Msg("Serving last good response")
		return stale, nil
	}

	var zero T
	return zero, err
}

// yahooSource wraps a Yahoo call in the window-gated backoff retrier.
func yahooSource[T any](s *Service, call func(ctx context.Context) (T, error)) fetch.Source[T] {
	return fetch.Source[T]{
		Name: s.yahoo.Name(),
		Fetch: func(ctx context.Context) (T, error) {
			return fetch.CallWithBackoff(ctx, s.retrier, s.yahoo.Name(), call)
		},
	}
}

// unavailable wraps err so callers can test for ErrUnavailable while keeping
// the upstream cause.
func unavailable(what string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", what, ErrUnavailable, err)
}
