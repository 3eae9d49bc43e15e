package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/Sternrassler/finpath-api/internal/testutil"
)

func setupPinecone(t *testing.T) (*Pinecone, *testutil.MockProvider) {
	t.Helper()
	mock := testutil.NewMockProvider()
	t.Cleanup(mock.Close)
	return NewPinecone("pc-key", mock.URL()), mock
}

func TestPinecone_Query(t *testing.T) {
	p, mock := setupPinecone(t)

	var got pineconeQuery
	mock.SetHandler("/query", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matches": [
			{"id": "doc-1", "score": 0.91, "metadata": {"text": "P/E is price divided by earnings", "source": "kb"}},
			{"id": "doc-2", "score": 0.75, "metadata": {"title": "no text"}}
		]}`))
	})

	matches, err := p.Query(context.Background(), []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].Text() != "P/E is price divided by earnings" {
		t.Errorf("Text() = %q", matches[0].Text())
	}
	if matches[1].Text() != "" {
		t.Errorf("Text() = %q, want empty", matches[1].Text())
	}
	if got.TopK != 3 || !got.IncludeMetadata || len(got.Vector) != 2 {
		t.Errorf("request = %+v", got)
	}
	if key := mock.LastRequest().Header.Get("Api-Key"); key != "pc-key" {
		t.Errorf("Api-Key = %q", key)
	}
}

func TestPinecone_Upsert(t *testing.T) {
	p, mock := setupPinecone(t)
	mock.SetResponse("/vectors/upsert", testutil.NewJSONResponse(`{"upsertedCount": 2}`))

	n, err := p.Upsert(context.Background(), []Vector{
		{ID: "a", Values: []float32{1}},
		{ID: "b", Values: []float32{2}, Metadata: map[string]any{"title": "x"}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Upsert() = %d, want 2", n)
	}

	n, err = p.Upsert(context.Background(), nil)
	if err != nil || n != 0 {
		t.Errorf("Upsert(nil) = %d, %v, want 0, nil", n, err)
	}
	if mock.PathCount("/vectors/upsert") != 1 {
		t.Error("empty upsert should not reach the index")
	}
}

func TestPinecone_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		p    *Pinecone
	}{
		{name: "no key", p: NewPinecone("", "https://idx.pinecone.io")},
		{name: "no host", p: NewPinecone("key", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.p.Configured() {
				t.Error("Configured() = true, want false")
			}
			if _, err := tt.p.Query(context.Background(), []float32{1}, 1); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("Query() error = %v, want ErrNotConfigured", err)
			}
		})
	}
}
