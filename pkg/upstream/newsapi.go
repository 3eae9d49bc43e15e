package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// NewsAPIBaseURL is the production endpoint.
const NewsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPIMatcher adds NewsAPI's throttling error codes to the defaults.
func NewsAPIMatcher() Matcher {
	m := DefaultMatcher()
	m.Substrings = append(m.Substrings, "rateLimited", "maximumResultsReached")
	return m
}

// NewsAPI is a client for newsapi.org.
type NewsAPI struct {
	http   *HTTPClient
	apiKey string
}

// NewNewsAPI creates a client. An empty apiKey yields ErrNotConfigured on every call.
func NewNewsAPI(apiKey string, opts ...Option) *NewsAPI {
	base := []Option{WithMatcher(NewsAPIMatcher())}
	if apiKey != "" {
		base = append(base, WithHeader("X-Api-Key", apiKey))
	}
	return &NewsAPI{
		http:   NewHTTPClient("newsapi", NewsAPIBaseURL, append(base, opts...)...),
		apiKey: apiKey,
	}
}

// Name returns the provider name.
func (n *NewsAPI) Name() string { return n.http.Provider() }

// Configured reports whether an API key is set.
func (n *NewsAPI) Configured() bool { return requireKey(n.Name(), n.apiKey) == nil }

type newsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   *string `json:"id"`
			Name string  `json:"name"`
		} `json:"source"`
		Author      *string `json:"author"`
		Title       string  `json:"title"`
		Description *string `json:"description"`
		URL         string  `json:"url"`
		URLToImage  *string `json:"urlToImage"`
		PublishedAt string  `json:"publishedAt"`
		Content     *string `json:"content"`
	} `json:"articles"`
}

// Everything searches all articles matching query, newest first.
func (n *NewsAPI) Everything(ctx context.Context, query string, pageSize int) ([]NewsArticle, error) {
	params := url.Values{
		"q":        {query},
		"sortBy":   {"publishedAt"},
		"language": {"en"},
	}
	return n.fetch(ctx, "/everything", params, pageSize)
}

// TopHeadlines returns top headlines for category (default business).
func (n *NewsAPI) TopHeadlines(ctx context.Context, category string, pageSize int) ([]NewsArticle, error) {
	if category == "" {
		category = "business"
	}
	params := url.Values{
		"category": {category},
		"language": {"en"},
	}
	return n.fetch(ctx, "/top-headlines", params, pageSize)
}

func (n *NewsAPI) fetch(ctx context.Context, path string, params url.Values, pageSize int) ([]NewsArticle, error) {
	if err := requireKey(n.Name(), n.apiKey); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	params.Set("pageSize", strconv.Itoa(pageSize))

	var body newsAPIResponse
	if err := n.http.GetJSON(ctx, path, params, &body); err != nil {
		return nil, err
	}
	if body.Status == "error" {
		return nil, n.http.PayloadError(fmt.Sprintf("%s: %s", body.Code, body.Message))
	}
	if len(body.Articles) == 0 {
		return nil, n.http.Empty("no articles")
	}

	out := make([]NewsArticle, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.Title == "" || a.Title == "[Removed]" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		out = append(out, NewsArticle{
			Title:       a.Title,
			Description: deref(a.Description),
			Content:     deref(a.Content),
			URL:         a.URL,
			ImageURL:    deref(a.URLToImage),
			Source:      a.Source.Name,
			Author:      deref(a.Author),
			PublishedAt: published.UTC(),
		})
	}
	if len(out) == 0 {
		return nil, n.http.Empty("no articles")
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
