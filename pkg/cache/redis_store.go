package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces cache rows in a shared Redis.
const DefaultRedisPrefix = "finpath:cache:"

// RedisStore keeps one JSON-encoded Row per Redis string key.
//
// Staleness is still decided by the Manager from created_at; the Redis
// expiry (twice the effective TTL) only bounds memory for keys nobody reads.
type RedisStore struct {
	redis      *redis.Client
	prefix     string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewRedisStore creates a Redis-backed store. defaultTTL is used to size the
// Redis expiry for rows written without a per-entry TTL.
func NewRedisStore(client *redis.Client, prefix string, defaultTTL time.Duration) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &RedisStore{
		redis:      client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (s *RedisStore) observe(op string, start time.Time) {
	StoreRequestDuration.WithLabelValues("redis", op).Observe(time.Since(start).Seconds())
}

func (s *RedisStore) SelectByKey(ctx context.Context, key string) (*Row, error) {
	defer s.observe("select", time.Now())

	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		// An undecodable row has no usable created_at; the manager discards it
		return &Row{Key: key}, nil
	}
	return &row, nil
}

func (s *RedisStore) Upsert(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	defer s.observe("upsert", time.Now())

	row := Row{
		Key:        key,
		Value:      value,
		CreatedAt:  s.now().UTC().Format(time.RFC3339Nano),
		TTLSeconds: ttlSeconds(ttl),
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal cache row: %w", err)
	}

	expiry := s.defaultTTL
	if ttl > 0 {
		expiry = ttl
	}
	if err := s.redis.Set(ctx, s.prefix+key, data, 2*expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteByKey(ctx context.Context, key string) error {
	defer s.observe("delete", time.Now())

	if err := s.redis.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) SelectAll(ctx context.Context) ([]Row, error) {
	defer s.observe("select_all", time.Now())

	var rows []Row
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		data, err := s.redis.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			// Expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}

		var row Row
		if err := json.Unmarshal(data, &row); err != nil {
			// Surface the key so the sweep removes it
			rows = append(rows, Row{Key: iter.Val()[len(s.prefix):]})
			continue
		}
		rows = append(rows, row)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return rows, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
