package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is the global TTL applied to entries written without an override.
const DefaultTTL = time.Hour

var (
	// ErrCacheMiss indicates the requested key was not found in cache or was stale
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache row is corrupted (e.g. malformed created_at)
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager implements get-if-fresh / upsert / delete / sweep on top of a Store.
//
// Store failures never escape the Manager: reads degrade to a miss and writes
// report false, so callers always fall through to the upstream fetch.
type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the global TTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new cache manager on top of store.
func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	m := &Manager{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the global TTL.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Get returns the cached value for key if it exists and is fresh.
//
// A stale or malformed row is deleted best-effort and reported as absent.
// Store errors are logged and reported as absent.
func (m *Manager) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if key == "" {
		return nil, false
	}

	row, err := m.store.SelectByKey(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache get failed")
		return nil, false
	}
	if row == nil {
		CacheMisses.Inc()
		m.logger.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}

	entry, err := row.Entry()
	if err != nil {
		// Unparseable timestamp: treat as expired
		CacheStale.Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Malformed cache entry, discarding")
		m.deleteStale(ctx, key)
		return nil, false
	}

	now := m.now()
	if entry.IsExpired(now, m.ttl) {
		CacheStale.Inc()
		m.logger.Debug().
			Str("key", key).
			Dur("age", entry.Age(now)).
			Dur("ttl", entry.EffectiveTTL(m.ttl)).
			Msg("Cache entry expired")
		m.deleteStale(ctx, key)
		return nil, false
	}

	CacheHits.Inc()
	m.logger.Debug().
		Str("key", key).
		Dur("remaining", entry.Remaining(now, m.ttl)).
		Msg("Cache hit")
	return entry.Value, true
}

// GetDecoded is Get followed by json.Unmarshal into dst.
// A value that does not decode into dst is reported as absent.
func (m *Manager) GetDecoded(ctx context.Context, key string, dst any) bool {
	raw, ok := m.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cached value does not decode, ignoring")
		return false
	}
	return true
}

// deleteStale removes a stale row. Failures are logged, never propagated.
func (m *Manager) deleteStale(ctx context.Context, key string) {
	if err := m.store.DeleteByKey(ctx, key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete stale cache entry")
	}
}

// Set stores value under key, replacing any existing row.
//
// ttl overrides the global TTL for this entry; zero keeps the global TTL.
// The store assigns created_at. Returns false if the value could not be
// encoded or the store rejected the write.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if key == "" {
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode cache value")
		return false
	}

	if err := m.store.Upsert(ctx, key, data, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache set failed")
		return false
	}

	CacheWrites.Inc()
	m.logger.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Dur("ttl", m.effectiveTTL(ttl)).
		Msg("Cached value")
	return true
}

// Delete removes the entry for key. Deleting a missing key succeeds.
func (m *Manager) Delete(ctx context.Context, key string) bool {
	if err := m.store.DeleteByKey(ctx, key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
		return false
	}
	return true
}

// SweepExpired deletes every row whose age has reached its effective TTL,
// including rows with malformed timestamps, and returns how many were deleted.
//
// The sweep loads the whole table in one call; it is meant for the periodic
// background job, not the request path.
func (m *Manager) SweepExpired(ctx context.Context) int {
	start := m.now()

	rows, err := m.store.SelectAll(ctx)
	if err != nil {
		CacheErrors.WithLabelValues("sweep").Inc()
		m.logger.Warn().Err(err).Msg("Cache sweep failed to list entries")
		return 0
	}

	now := m.now()
	deleted := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}

		entry, err := row.Entry()
		if err == nil && !entry.IsExpired(now, m.ttl) {
			continue
		}

		if err := m.store.DeleteByKey(ctx, row.Key); err != nil {
			CacheErrors.WithLabelValues("sweep").Inc()
			m.logger.Warn().Err(err).Str("key", row.Key).Msg("Failed to delete expired entry")
			continue
		}
		deleted++
	}

	CacheSwept.Add(float64(deleted))
	m.logger.Info().
		Int("scanned", len(rows)).
		Int("deleted", deleted).
		Dur("duration", m.now().Sub(start)).
		Msg("Cache sweep complete")
	return deleted
}

// StartSweeper runs SweepExpired every interval until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.logger.Debug().Msg("Cache sweeper stopped")
				return
			case <-ticker.C:
				m.SweepExpired(ctx)
			}
		}
	}()
}

// GetOrFetch returns the fresh cached value for key, or calls fetch, stores
// its result with ttl and returns it. A failed store write does not fail the
// call. fetch errors are returned unchanged and nothing is cached.
func (m *Manager) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (any, error)) (json.RawMessage, error) {
	if raw, ok := m.Get(ctx, key); ok {
		return raw, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode fetched value: %w", err)
	}

	m.Set(ctx, key, json.RawMessage(data), ttl)
	return data, nil
}

// Fetch is the typed form of GetOrFetch. hit reports whether the value came
// from the cache.
func Fetch[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (value T, hit bool, err error) {
	if m.GetDecoded(ctx, key, &value) {
		return value, true, nil
	}

	value, err = fetch(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	m.Set(ctx, key, value, ttl)
	return value, false, nil
}

// Ping checks the underlying store.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (m *Manager) effectiveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return m.ttl
}
