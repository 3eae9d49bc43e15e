//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})
	return client
}

// setupPostgres creates a Postgres container and returns its DSN.
func setupPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "finpath",
			"POSTGRES_PASSWORD": "finpath",
			"POSTGRES_DB":       "finpath",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("postgres://finpath:finpath@%s:%s/finpath?sslmode=disable", host, port.Port())
}

func TestRedisStore(t *testing.T) {
	client := setupRedis(t)
	store := cache.NewRedisStore(client, "finpath-test:", time.Hour)

	testStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	dsn := setupPostgres(t)

	store, err := cache.NewPostgresStore(dsn, "cache")
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// Idempotent
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}

	testStore(t, store)
}

// testStore checks the row semantics every cache.Store must provide.
func testStore(t *testing.T, store cache.Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	row, err := store.SelectByKey(ctx, "stock_MISSING.NS")
	if err != nil || row != nil {
		t.Fatalf("SelectByKey(missing) = %v, %v, want nil, nil", row, err)
	}

	before := time.Now().Add(-time.Minute)
	if err := store.Upsert(ctx, "stock_TCS.NS", json.RawMessage(`{"price":3850}`), 15*time.Minute); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	row, err = store.SelectByKey(ctx, "stock_TCS.NS")
	if err != nil || row == nil {
		t.Fatalf("SelectByKey() = %v, %v", row, err)
	}
	var v struct{ Price float64 }
	if err := json.Unmarshal(row.Value, &v); err != nil || v.Price != 3850 {
		t.Errorf("value = %s, want price 3850", row.Value)
	}
	if row.TTLSeconds != 900 {
		t.Errorf("ttl_seconds = %d, want 900", row.TTLSeconds)
	}
	entry, err := row.Entry()
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if entry.CreatedAt.Before(before) {
		t.Errorf("created_at = %v, want after %v", entry.CreatedAt, before)
	}

	// Replace keeps one row and refreshes the value
	if err := store.Upsert(ctx, "stock_TCS.NS", json.RawMessage(`{"price":3900}`), 0); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, "stock_INFY.NS", json.RawMessage(`{"price":1500}`), 0); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rows, err := store.SelectAll(ctx)
	if err != nil {
		t.Fatalf("SelectAll() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("SelectAll() = %d rows, want 2", len(rows))
	}

	if err := store.DeleteByKey(ctx, "stock_TCS.NS"); err != nil {
		t.Fatalf("DeleteByKey() error = %v", err)
	}
	if err := store.DeleteByKey(ctx, "stock_TCS.NS"); err != nil {
		t.Errorf("DeleteByKey(missing) error = %v", err)
	}
	if row, _ := store.SelectByKey(ctx, "stock_TCS.NS"); row != nil {
		t.Error("row still present after delete")
	}

	// Through the manager
	manager := cache.NewManager(store)
	if !manager.Set(ctx, "news_latest", map[string]string{"source": "newsapi"}, time.Minute) {
		t.Fatal("Set() = false")
	}
	data, ok := manager.Get(ctx, "news_latest")
	if !ok {
		t.Fatal("Get() miss after Set")
	}
	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil || got["source"] != "newsapi" {
		t.Errorf("Get() = %s", data)
	}
	if n := manager.SweepExpired(ctx); n != 0 {
		t.Errorf("SweepExpired() = %d, want 0 for fresh rows", n)
	}
}
