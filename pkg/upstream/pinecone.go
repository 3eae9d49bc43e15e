package upstream

import (
	"context"
	"strings"
)

// Pinecone is a client for a single Pinecone index's data-plane host.
type Pinecone struct {
	http   *HTTPClient
	apiKey string
	host   string
}

// NewPinecone creates a client for the index served at host
// (e.g. https://finpath-abc123.svc.us-east-1.pinecone.io).
func NewPinecone(apiKey, host string, opts ...Option) *Pinecone {
	host = strings.TrimRight(host, "/")
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	base := []Option{}
	if apiKey != "" {
		base = append(base, WithHeader("Api-Key", apiKey))
	}
	return &Pinecone{
		http:   NewHTTPClient("pinecone", host, append(base, opts...)...),
		apiKey: apiKey,
		host:   host,
	}
}

// Name returns the provider name.
func (p *Pinecone) Name() string { return p.http.Provider() }

// Configured reports whether an API key and index host are set.
func (p *Pinecone) Configured() bool {
	return requireKey(p.Name(), p.apiKey) == nil && p.http.baseURL != ""
}

func (p *Pinecone) check() error {
	if err := requireKey(p.Name(), p.apiKey); err != nil {
		return err
	}
	return requireKey(p.Name(), p.http.baseURL)
}

type pineconeQuery struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

// Query returns the topK nearest vectors to vector, with metadata.
func (p *Pinecone) Query(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	var resp struct {
		Matches []VectorMatch `json:"matches"`
	}
	req := pineconeQuery{Vector: vector, TopK: topK, IncludeMetadata: true}
	if err := p.http.PostJSON(ctx, "/query", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// Upsert writes vectors and returns the number the index accepted.
func (p *Pinecone) Upsert(ctx context.Context, vectors []Vector) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	var resp struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	req := struct {
		Vectors []Vector `json:"vectors"`
	}{Vectors: vectors}
	if err := p.http.PostJSON(ctx, "/vectors/upsert", nil, req, &resp); err != nil {
		return 0, err
	}
	return resp.UpsertedCount, nil
}

// Delete removes vectors by id.
func (p *Pinecone) Delete(ctx context.Context, ids []string) error {
	if err := p.check(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	var resp map[string]any
	return p.http.PostJSON(ctx, "/vectors/delete", nil, req, &resp)
}
