package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are the created_at encodings returned by the supported
// stores. PostgREST emits RFC 3339 with microseconds and a "+00:00" offset,
// lib/pq and older tables may return values without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Row is a cache table row in its wire form, exactly as a Store returns it.
type Row struct {
	// Key is the primary key.
	Key string `json:"key"`

	// Value is the cached JSON document.
	Value json.RawMessage `json:"value"`

	// CreatedAt is assigned by the store on insert and on every replace.
	// Kept as text so malformed values can be detected and treated as expired.
	CreatedAt string `json:"created_at"`

	// TTLSeconds is the TTL requested when the row was written (0 = global TTL).
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// Entry is a decoded cache row.
type Entry struct {
	Key       string
	Value     json.RawMessage
	CreatedAt time.Time

	// TTL is the per-entry TTL; zero means the manager's global TTL applies.
	TTL time.Duration
}

// Entry parses the row's timestamp.
// Returns ErrInvalidEntry if created_at is missing or unparseable.
func (r Row) Entry() (*Entry, error) {
	createdAt, err := ParseTimestamp(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidEntry, r.Key, err)
	}

	return &Entry{
		Key:       r.Key,
		Value:     r.Value,
		CreatedAt: createdAt,
		TTL:       time.Duration(r.TTLSeconds) * time.Second,
	}, nil
}

// ParseTimestamp parses a created_at value in any of the layouts the stores emit.
// Values without a zone are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// EffectiveTTL returns the entry's own TTL, or fallback when none was stored.
func (e *Entry) EffectiveTTL(fallback time.Duration) time.Duration {
	if e.TTL > 0 {
		return e.TTL
	}
	return fallback
}

// Age returns how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// IsExpired reports whether the entry is stale at now.
// An entry is fresh while its age is strictly below the effective TTL.
func (e *Entry) IsExpired(now time.Time, fallback time.Duration) bool {
	return e.Age(now) >= e.EffectiveTTL(fallback)
}

// Remaining returns the time left until the entry expires.
// Returns 0 if already expired.
func (e *Entry) Remaining(now time.Time, fallback time.Duration) time.Duration {
	left := e.EffectiveTTL(fallback) - e.Age(now)
	if left < 0 {
		return 0
	}
	return left
}
