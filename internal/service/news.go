package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/cache"
	"github.com/Sternrassler/finpath-api/pkg/fetch"
	"github.com/Sternrassler/finpath-api/pkg/logging"
	"github.com/Sternrassler/finpath-api/pkg/upstream"
	"github.com/google/uuid"
)

const defaultNewsQuery = "Indian stock market OR Sensex OR Nifty"

// LatestNews returns market news for topics from NewsAPI, then Alpha Vantage.
// When both fail, placeholder articles are returned with source "mock".
func (s *Service) LatestNews(ctx context.Context, topics []string, limit int) (*News, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	topics = cleanList(topics)

	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if len(topics) > 0 {
		query.Set("topics", strings.Join(topics, ","))
	}
	key := cache.Key("news_latest", "", query)

	var sources []fetch.Source[[]upstream.NewsArticle]
	if s.news != nil && s.news.Configured() {
		sources = append(sources, fetch.Source[[]upstream.NewsArticle]{
			Name: s.news.Name(),
			Fetch: func(ctx context.Context) ([]upstream.NewsArticle, error) {
				if len(topics) == 0 {
					return s.news.TopHeadlines(ctx, "business", limit)
				}
				return s.news.Everything(ctx, strings.Join(topics, " OR "), limit)
			},
		})
	}
	if s.av != nil && s.av.Configured() {
		sources = append(sources, fetch.Source[[]upstream.NewsArticle]{
			Name: s.av.Name(),
			Fetch: func(ctx context.Context) ([]upstream.NewsArticle, error) {
				return s.av.NewsSentiment(ctx, nil, topics, limit)
			},
		})
	}

	return s.newsWithFallback(ctx, key, sources, limit, "")
}

// CompanyNews returns news about symbol, with company-specific placeholder
// articles first when every provider fails.
func (s *Service) CompanyNews(ctx context.Context, symbol string, limit int) (*News, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	key := cache.Key("news_company", symbol, url.Values{"limit": {strconv.Itoa(limit)}})
	company := companyQuery(symbol)

	var sources []fetch.Source[[]upstream.NewsArticle]
	if s.news != nil && s.news.Configured() {
		sources = append(sources, fetch.Source[[]upstream.NewsArticle]{
			Name: s.news.Name(),
			Fetch: func(ctx context.Context) ([]upstream.NewsArticle, error) {
				return s.news.Everything(ctx, company, limit)
			},
		})
	}
	if s.av != nil && s.av.Configured() {
		sources = append(sources, fetch.Source[[]upstream.NewsArticle]{
			Name: s.av.Name(),
			Fetch: func(ctx context.Context) ([]upstream.NewsArticle, error) {
				return s.av.NewsSentiment(ctx, []string{symbol}, nil, limit)
			},
		})
	}

	return s.newsWithFallback(ctx, key, sources, limit, symbol)
}

func (s *Service) newsWithFallback(ctx context.Context, key string, sources []fetch.Source[[]upstream.NewsArticle], limit int, symbol string) (*News, error) {
	n, err := cached(ctx, s, key, TTLNews, func(ctx context.Context) (*News, error) {
		res := fetch.ChainResult(ctx, sources...)
		if !res.Ok() {
			return nil, res.Err
		}
		articles := res.Value
		if len(articles) > limit {
			articles = articles[:limit]
		}
		return &News{News: articles, Source: res.Source}, nil
	})
	if err == nil {
		return n, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logging.FromContext(ctx).Warn().
		Err(err).
		Str("component", "service").
		Str("key", key).
		Msg("News providers unavailable, serving placeholder articles")
	return &News{News: mockNews(limit, symbol, s.now()), Source: mockSource}, nil
}

// companyQuery turns an exchange symbol into a search phrase
// ("RELIANCE.NS" -> "RELIANCE").
func companyQuery(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

func cleanList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// RefreshKnowledgeBase embeds the latest market news and stores it in the
// vector index used for chat context. It returns the number of vectors
// written.
func (s *Service) RefreshKnowledgeBase(ctx context.Context, topics []string, limit int) (int, error) {
	if s.llm == nil || !s.llm.Configured() || s.vectors == nil || !s.vectors.Configured() {
		return 0, upstream.ErrNotConfigured
	}

	news, err := s.LatestNews(ctx, topics, limit)
	if err != nil {
		return 0, err
	}
	if news.Source == mockSource {
		return 0, unavailable("knowledge base refresh", upstream.ErrEmptyPayload)
	}

	vectors, err := fetch.Batch(ctx, news.News, func(ctx context.Context, a upstream.NewsArticle) (upstream.Vector, error) {
		text := strings.TrimSpace(a.Title + "\n\n" + a.Description)
		values, err := s.llm.Embed(ctx, text)
		if err != nil {
			return upstream.Vector{}, err
		}
		return upstream.Vector{
			ID:     uuid.NewString(),
			Values: values,
			Metadata: map[string]any{
				"text":         text,
				"title":        a.Title,
				"url":          a.URL,
				"source":       a.Source,
				"published_at": a.PublishedAt.Format(time.RFC3339),
				"type":         "news",
			},
		}, nil
	}, s.batch)
	if err != nil {
		return 0, err
	}

	n, err := s.vectors.Upsert(ctx, vectors)
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info().
		Str("component", "service").
		Int("vectors", n).
		Msg("Knowledge base refreshed")
	return n, nil
}
