package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore keeps the cache table in Postgres over database/sql.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore opens a connection pool for dsn.
// The table name must be a plain SQL identifier.
func NewPostgresStore(dsn, table string) (*PostgresStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresStore{db: db, table: table}, nil
}

// EnsureSchema creates the cache table and its created_at index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ttl_seconds INTEGER NOT NULL DEFAULT 0
		)`, s.table),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS ttl_seconds INTEGER NOT NULL DEFAULT 0`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) observe(op string, start time.Time) {
	StoreRequestDuration.WithLabelValues("postgres", op).Observe(time.Since(start).Seconds())
}

func (s *PostgresStore) SelectByKey(ctx context.Context, key string) (*Row, error) {
	defer s.observe("select", time.Now())

	var (
		row       Row
		value     []byte
		createdAt time.Time
	)
	q := fmt.Sprintf(`SELECT key, value, created_at, ttl_seconds FROM %s WHERE key = $1`, s.table)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&row.Key, &value, &createdAt, &row.TTLSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select cache row: %w", err)
	}

	row.Value = json.RawMessage(value)
	row.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	return &row, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	defer s.observe("upsert", time.Now())

	q := fmt.Sprintf(`INSERT INTO %s (key, value, created_at, ttl_seconds)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, created_at = now(), ttl_seconds = EXCLUDED.ttl_seconds`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key, []byte(value), ttlSeconds(ttl)); err != nil {
		return fmt.Errorf("upsert cache row: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteByKey(ctx context.Context, key string) error {
	defer s.observe("delete", time.Now())

	q := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("delete cache row: %w", err)
	}
	return nil
}

func (s *PostgresStore) SelectAll(ctx context.Context) ([]Row, error) {
	defer s.observe("select_all", time.Now())

	q := fmt.Sprintf(`SELECT key, created_at, ttl_seconds FROM %s ORDER BY created_at`, s.table)
	rs, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list cache rows: %w", err)
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		var (
			row       Row
			createdAt time.Time
		)
		if err := rs.Scan(&row.Key, &createdAt, &row.TTLSeconds); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		row.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		rows = append(rows, row)
	}
	return rows, rs.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
