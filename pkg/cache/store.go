package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrStoreUnavailable indicates the backing store could not be reached.
var ErrStoreUnavailable = errors.New("cache store unavailable")

// Store is the remote key/value table the Manager sits on top of.
//
// The table has one row per key; writes replace the existing row and the
// store (not the caller) assigns created_at on every write. Implementations
// must be safe for concurrent use.
type Store interface {
	// SelectByKey returns the row for key, or nil if no row exists.
	SelectByKey(ctx context.Context, key string) (*Row, error)

	// Upsert inserts or replaces the row for key. ttl is persisted with the
	// row (zero means "use the global TTL").
	Upsert(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error

	// DeleteByKey removes the row for key. Deleting a missing key is not an error.
	DeleteByKey(ctx context.Context, key string) error

	// SelectAll returns every row. Only used by the expiry sweep.
	SelectAll(ctx context.Context) ([]Row, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// ttlSeconds converts a TTL to the whole seconds persisted with a row.
func ttlSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	secs := int(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}
