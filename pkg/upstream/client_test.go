package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/finpath-api/internal/testutil"
)

func setupClient(t *testing.T, opts ...Option) (*HTTPClient, *testutil.MockProvider) {
	t.Helper()
	mock := testutil.NewMockProvider()
	t.Cleanup(mock.Close)
	return NewHTTPClient("test", mock.URL(), opts...), mock
}

func TestHTTPClient_GetJSON(t *testing.T) {
	client, mock := setupClient(t, WithHeader("X-Api-Key", "secret"))
	mock.SetResponse("/data", testutil.NewJSONResponse(`{"value": 42}`))

	var out struct {
		Value int `json:"value"`
	}
	if err := client.GetJSON(context.Background(), "/data", url.Values{"symbol": {"TCS.NS"}}, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Value != 42 {
		t.Errorf("Value = %d, want 42", out.Value)
	}

	req := mock.LastRequest()
	if got := req.URL.Query().Get("symbol"); got != "TCS.NS" {
		t.Errorf("symbol = %q, want %q", got, "TCS.NS")
	}
	if got := req.Header.Get("X-Api-Key"); got != "secret" {
		t.Errorf("X-Api-Key = %q, want %q", got, "secret")
	}
}

func TestHTTPClient_Classification(t *testing.T) {
	tests := []struct {
		name   string
		resp   testutil.MockResponse
		class  Class
		status int
	}{
		{name: "429", resp: testutil.NewRateLimitResponse(), class: ClassRateLimit, status: 429},
		{name: "500", resp: testutil.NewServerErrorResponse(), class: ClassServer, status: 500},
		{name: "404", resp: testutil.NewNotFoundResponse(), class: ClassClient, status: 404},
		{name: "408 is transient", resp: testutil.MockResponse{StatusCode: 408, Body: "Request Timeout"}, class: ClassServer, status: 408},
		{name: "throttle text on 403", resp: testutil.MockResponse{StatusCode: 403, Body: "Too Many Requests"}, class: ClassRateLimit, status: 403},
		{name: "bad json", resp: testutil.NewJSONResponse(`{not json`), class: ClassPayload, status: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := setupClient(t)
			mock.SetResponse("/x", tt.resp)

			var out map[string]any
			err := client.GetJSON(context.Background(), "/x", nil, &out)
			var upErr *Error
			if !errors.As(err, &upErr) {
				t.Fatalf("GetJSON() error = %v, want *Error", err)
			}
			if upErr.Class != tt.class {
				t.Errorf("Class = %q, want %q", upErr.Class, tt.class)
			}
			if upErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", upErr.StatusCode, tt.status)
			}
			if upErr.Provider != "test" {
				t.Errorf("Provider = %q, want %q", upErr.Provider, "test")
			}
		})
	}
}

func TestHTTPClient_EmptyBody(t *testing.T) {
	client, mock := setupClient(t)
	mock.SetResponse("/empty", testutil.MockResponse{StatusCode: http.StatusOK})

	var out map[string]any
	err := client.GetJSON(context.Background(), "/empty", nil, &out)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("GetJSON() error = %v, want ErrEmptyPayload", err)
	}
}

func TestHTTPClient_ResponseTooLarge(t *testing.T) {
	old := maxResponseBody
	maxResponseBody = 16
	t.Cleanup(func() { maxResponseBody = old })

	client, mock := setupClient(t)
	mock.SetResponse("/big", testutil.NewJSONResponse(`{"value": "0123456789abcdef0123456789"}`))
	mock.SetResponse("/small", testutil.NewJSONResponse(`{"v": 1}`))

	var out map[string]any
	err := client.GetJSON(context.Background(), "/big", nil, &out)
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Errorf("GetJSON() error = %v, want ErrResponseTooLarge", err)
	}
	if got := ClassOf(err); got != ClassPayload {
		t.Errorf("ClassOf() = %q, want %q", got, ClassPayload)
	}

	if err := client.GetJSON(context.Background(), "/small", nil, &out); err != nil {
		t.Errorf("GetJSON(small) error = %v", err)
	}
}

func TestHTTPClient_NetworkError(t *testing.T) {
	client := NewHTTPClient("test", "http://127.0.0.1:1")

	var out map[string]any
	err := client.GetJSON(context.Background(), "/x", nil, &out)
	if got := ClassOf(err); got != ClassNetwork {
		t.Errorf("ClassOf() = %q, want %q (err = %v)", got, ClassNetwork, err)
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	client, mock := setupClient(t)
	mock.SetResponse("/slow", testutil.MockResponse{StatusCode: 200, Body: `{}`, Delay: 2 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]any
	err := client.GetJSON(ctx, "/slow", nil, &out)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetJSON() error = %v, want context.DeadlineExceeded", err)
	}
	if !IsPermanent(err) {
		t.Error("IsPermanent() = false for cancelled call, want true")
	}
}

func TestHTTPClient_PostJSON(t *testing.T) {
	client, mock := setupClient(t)
	mock.SetHandler("/echo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	})

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.PostJSON(context.Background(), "/echo", nil, map[string]int{"a": 1}, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if !out.OK {
		t.Error("OK = false, want true")
	}
}

func TestHTTPClient_PayloadError(t *testing.T) {
	client := NewHTTPClient("test", "http://unused", WithMatcher(AlphaVantageMatcher()))

	if got := client.PayloadError("Invalid API call").Class; got != ClassPayload {
		t.Errorf("Class = %q, want %q", got, ClassPayload)
	}
	if got := client.PayloadError("Our standard API call frequency is 5 calls per minute").Class; got != ClassRateLimit {
		t.Errorf("Class = %q, want %q", got, ClassRateLimit)
	}
}
