package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTable is the cache table name.
const DefaultTable = "cache"

// PostgRESTStore talks to a Supabase-style PostgREST endpoint
// (<base>/rest/v1/<table>) authenticated with a project API key.
type PostgRESTStore struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
}

// PostgRESTConfig holds the PostgREST store configuration.
type PostgRESTConfig struct {
	// URL is the project URL (e.g., https://xyz.supabase.co)
	URL string

	// APIKey is sent as both the apikey header and the bearer token
	APIKey string

	// Table defaults to DefaultTable
	Table string

	// Timeout per request (default: 5s)
	Timeout time.Duration

	// HTTPClient overrides the default client (Timeout is then ignored)
	HTTPClient *http.Client
}

// NewPostgRESTStore creates a PostgREST-backed store.
func NewPostgRESTStore(cfg PostgRESTConfig) (*PostgRESTStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgrest url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("postgrest api key is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// Keys copied from dashboards often carry trailing newlines
	apiKey := strings.TrimSpace(strings.ReplaceAll(cfg.APIKey, "\n", ""))

	return &PostgRESTStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     apiKey,
		table:      cfg.Table,
		httpClient: httpClient,
	}, nil
}

func (s *PostgRESTStore) endpoint(query url.Values) string {
	u := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, url.PathEscape(s.table))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (s *PostgRESTStore) do(ctx context.Context, op, method string, query url.Values, body any, prefer string, dst any) error {
	start := time.Now()
	defer func() {
		StoreRequestDuration.WithLabelValues("postgrest", op).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(query), reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("postgrest %s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (s *PostgRESTStore) SelectByKey(ctx context.Context, key string) (*Row, error) {
	query := url.Values{
		"select": {"*"},
		"key":    {"eq." + key},
		"limit":  {"1"},
	}

	var rows []Row
	if err := s.do(ctx, "select", http.MethodGet, query, nil, "", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// upsertRow is the write payload. created_at is sent as the Postgres special
// input "now" so replaced rows are restamped by the database clock; a column
// default alone only applies on insert.
type upsertRow struct {
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	CreatedAt  string          `json:"created_at"`
	TTLSeconds int             `json:"ttl_seconds"`
}

func (s *PostgRESTStore) Upsert(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	row := upsertRow{
		Key:        key,
		Value:      value,
		CreatedAt:  "now",
		TTLSeconds: ttlSeconds(ttl),
	}
	query := url.Values{"on_conflict": {"key"}}
	return s.do(ctx, "upsert", http.MethodPost, query, []upsertRow{row},
		"resolution=merge-duplicates,return=minimal", nil)
}

func (s *PostgRESTStore) DeleteByKey(ctx context.Context, key string) error {
	query := url.Values{"key": {"eq." + key}}
	return s.do(ctx, "delete", http.MethodDelete, query, nil, "return=minimal", nil)
}

func (s *PostgRESTStore) SelectAll(ctx context.Context) ([]Row, error) {
	query := url.Values{"select": {"key,created_at,ttl_seconds"}}

	var rows []Row
	if err := s.do(ctx, "select_all", http.MethodGet, query, nil, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PostgRESTStore) Ping(ctx context.Context) error {
	query := url.Values{"select": {"key"}, "limit": {"1"}}
	var rows []Row
	return s.do(ctx, "ping", http.MethodGet, query, nil, "", &rows)
}
