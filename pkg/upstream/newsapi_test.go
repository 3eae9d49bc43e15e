package upstream

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/finpath-api/internal/testutil"
)

func setupNewsAPI(t *testing.T) (*NewsAPI, *testutil.MockProvider) {
	t.Helper()
	mock := testutil.NewMockProvider()
	t.Cleanup(mock.Close)
	return NewNewsAPI("news-key", WithBaseURL(mock.URL())), mock
}

func TestNewsAPI_Everything(t *testing.T) {
	n, mock := setupNewsAPI(t)
	mock.SetResponse("/everything", testutil.NewJSONResponse(`{
		"status": "ok", "totalResults": 3,
		"articles": [
			{"source": {"id": null, "name": "Mint"}, "author": "A. Writer", "title": "Sensex climbs",
			 "description": "Benchmarks rose", "url": "https://example.com/1", "urlToImage": null,
			 "publishedAt": "2025-05-12T10:15:00Z", "content": "..."},
			{"source": {"name": "Removed"}, "title": "[Removed]", "url": "https://removed.com", "publishedAt": "2025-05-12T09:00:00Z"},
			{"source": {"name": "ET"}, "title": "RBI holds rates", "url": "https://example.com/2", "publishedAt": "2025-05-11T08:00:00Z"}
		]
	}`))

	items, err := n.Everything(context.Background(), "Indian stock market", 5)
	if err != nil {
		t.Fatalf("Everything() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (removed article skipped)", len(items))
	}
	if items[0].Source != "Mint" || items[0].Author != "A. Writer" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].PublishedAt.Hour() != 10 {
		t.Errorf("PublishedAt = %v", items[0].PublishedAt)
	}

	req := mock.LastRequest()
	q := req.URL.Query()
	if q.Get("q") != "Indian stock market" || q.Get("sortBy") != "publishedAt" || q.Get("pageSize") != "5" || q.Get("language") != "en" {
		t.Errorf("query = %v", q)
	}
	if got := req.Header.Get("X-Api-Key"); got != "news-key" {
		t.Errorf("X-Api-Key = %q", got)
	}
}

func TestNewsAPI_TopHeadlines(t *testing.T) {
	n, mock := setupNewsAPI(t)
	mock.SetResponse("/top-headlines", testutil.NewJSONResponse(`{"status": "ok", "articles": [
		{"source": {"name": "ET"}, "title": "Markets open flat", "url": "https://example.com/3", "publishedAt": "2025-05-12T03:45:00Z"}
	]}`))

	items, err := n.TopHeadlines(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("TopHeadlines() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	q := mock.LastRequest().URL.Query()
	if q.Get("category") != "business" || q.Get("pageSize") != "10" {
		t.Errorf("query = %v, want category=business pageSize=10", q)
	}
}

func TestNewsAPI_Errors(t *testing.T) {
	tests := []struct {
		name  string
		resp  testutil.MockResponse
		class Class
		empty bool
	}{
		{
			name:  "rate limited",
			resp:  testutil.MockResponse{StatusCode: 429, Body: `{"status":"error","code":"rateLimited","message":"You have made too many requests"}`},
			class: ClassRateLimit,
		},
		{
			name:  "bad key",
			resp:  testutil.MockResponse{StatusCode: 401, Body: `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`},
			class: ClassClient,
		},
		{
			name:  "error status on 200",
			resp:  testutil.NewJSONResponse(`{"status":"error","code":"parameterInvalid","message":"bad"}`),
			class: ClassPayload,
		},
		{name: "no articles", resp: testutil.NewJSONResponse(`{"status":"ok","articles":[]}`), empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, mock := setupNewsAPI(t)
			mock.SetResponse("/everything", tt.resp)

			_, err := n.Everything(context.Background(), "x", 5)
			if tt.empty {
				if !errors.Is(err, ErrEmptyPayload) {
					t.Errorf("Everything() error = %v, want ErrEmptyPayload", err)
				}
				return
			}
			if got := ClassOf(err); got != tt.class {
				t.Errorf("ClassOf() = %q, want %q (err = %v)", got, tt.class, err)
			}
		})
	}
}
