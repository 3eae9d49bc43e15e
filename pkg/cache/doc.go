// Package cache provides the TTL response cache used in front of the market
// data providers.
//
// The Manager implements get-if-fresh semantics over a remote key/value table:
//
// - One row per key (upsert), created_at assigned by the store on every write
// - Per-entry TTL persisted with the row, global TTL (default 1h) otherwise
// - Stale or malformed rows are deleted on read and reported as a miss
// - Store failures are logged and degrade to a miss; they never reach callers
// - Periodic sweep of expired rows
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store, err := cache.NewPostgRESTStore(cache.PostgRESTConfig{
//		URL:    os.Getenv("SUPABASE_URL"),
//		APIKey: os.Getenv("SUPABASE_ANON_KEY"),
//	})
//	if err != nil {
//		return err
//	}
//
//	manager := cache.NewManager(store, cache.WithTTL(time.Hour))
//
//	key := cache.Key("stock", "RELIANCE.NS", nil) // "stock_RELIANCE.NS"
//
//	quote, hit, err := cache.Fetch(ctx, manager, key, 15*time.Minute,
//		func(ctx context.Context) (*upstream.Quote, error) {
//			return fmp.Quote(ctx, "RELIANCE.NS")
//		})
//
// # Stores
//
//   - PostgRESTStore: Supabase REST table (primary)
//   - PostgresStore: direct SQL via lib/pq, with EnsureSchema
//   - RedisStore: one JSON row per Redis key
//   - MemoryStore: in-process, for local runs and tests
//
// # Metrics
//
//   - finpath_cache_hits_total - Fresh cache hits
//   - finpath_cache_misses_total - Keys with no row
//   - finpath_cache_stale_total - Expired or malformed rows found on read
//   - finpath_cache_writes_total - Successful upserts
//   - finpath_cache_swept_total - Rows removed by the sweep
//   - finpath_cache_errors_total{operation} - Cache operation errors
//   - finpath_cache_store_duration_seconds{backend,operation} - Store latency
package cache
