package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/cache"
)

type downStore struct{}

func (downStore) SelectByKey(context.Context, string) (*cache.Row, error) {
	return nil, errors.New("connection refused")
}
func (downStore) Upsert(context.Context, string, json.RawMessage, time.Duration) error {
	return errors.New("connection refused")
}
func (downStore) DeleteByKey(context.Context, string) error { return errors.New("connection refused") }
func (downStore) SelectAll(context.Context) ([]cache.Row, error) {
	return nil, errors.New("connection refused")
}
func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	env := setupService(t, Deps{FMP: &fakeFMP{}, Yahoo: &fakeYahoo{}})
	env.clock.Advance(90 * time.Second)

	r := env.svc.Health(context.Background())
	if r.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", r.Status)
	}
	if r.Version != Version {
		t.Errorf("Version = %q, want %q", r.Version, Version)
	}
	if r.Components["cache"].Status != "healthy" {
		t.Errorf("cache = %+v, want healthy", r.Components["cache"])
	}
	if r.Uptime != "1m30s" {
		t.Errorf("Uptime = %q, want 1m30s", r.Uptime)
	}

	wantProviders := map[string]bool{
		"alpha_vantage": false, "fmp": true, "yahoo": true,
		"newsapi": false, "gemini": false, "pinecone": false,
	}
	for name, want := range wantProviders {
		if r.Providers[name] != want {
			t.Errorf("Providers[%s] = %v, want %v", name, r.Providers[name], want)
		}
	}

	if len(r.RateLimits) != 1 {
		t.Fatalf("len(RateLimits) = %d, want 1", len(r.RateLimits))
	}
	rl := r.RateLimits[0]
	if rl.Upstream != "yahoo" || rl.Limit != 1000 || !rl.IsHealthy {
		t.Errorf("RateLimits[0] = %+v, want healthy yahoo window of 1000", rl)
	}
	if err := env.svc.Ready(context.Background()); err != nil {
		t.Errorf("Ready() error = %v", err)
	}
}

func TestHealth_StoreDown(t *testing.T) {
	svc := New(Deps{Cache: cache.NewManager(downStore{})})

	r := svc.Health(context.Background())
	if r.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", r.Status)
	}
	if c := r.Components["cache"]; c.Status != "unhealthy" || c.Error == "" {
		t.Errorf("cache = %+v, want unhealthy with an error", c)
	}
	if err := svc.Ready(context.Background()); !errors.Is(err, cache.ErrStoreUnavailable) {
		t.Errorf("Ready() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestNew_RequiresCache(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New() without cache did not panic")
		}
	}()
	New(Deps{})
}

func TestLastGood(t *testing.T) {
	lg := newLastGood(2)
	base := time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)

	lg.put("a", map[string]int{"v": 1}, base)
	lg.put("b", map[string]int{"v": 2}, base.Add(time.Minute))
	lg.put("a", map[string]int{"v": 3}, base.Add(2*time.Minute))
	lg.put("c", map[string]int{"v": 4}, base.Add(3*time.Minute))

	if lg.len() != 2 {
		t.Fatalf("len() = %d, want 2", lg.len())
	}
	var got map[string]int
	if _, ok := lg.get("b", &got); ok {
		t.Error("b still present, want it evicted as the oldest")
	}
	at, ok := lg.get("a", &got)
	if !ok || got["v"] != 3 {
		t.Errorf("get(a) = %v, %v, want v=3", got, ok)
	}
	if !at.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("stored at = %v, want %v", at, base.Add(2*time.Minute))
	}
}
