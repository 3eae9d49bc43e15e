package service

import (
	"context"

	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

// The interfaces below are the subset of each upstream client the service
// uses. The pkg/upstream clients satisfy them.

// AlphaVantageAPI is implemented by *upstream.AlphaVantage.
type AlphaVantageAPI interface {
	Name() string
	Configured() bool
	Quote(ctx context.Context, symbol string) (*upstream.Quote, error)
	Intraday(ctx context.Context, symbol, interval string) ([]upstream.Candle, error)
	Daily(ctx context.Context, symbol, outputsize string) ([]upstream.Candle, error)
	Overview(ctx context.Context, symbol string) (*upstream.CompanyOverview, error)
	NewsSentiment(ctx context.Context, tickers, topics []string, limit int) ([]upstream.NewsArticle, error)
}

// FMPAPI is implemented by *upstream.FMP.
type FMPAPI interface {
	Name() string
	Configured() bool
	Quote(ctx context.Context, symbol string) (*upstream.Quote, error)
	IndexQuote(ctx context.Context, symbol, name string) (*upstream.IndexQuote, error)
	TechnicalIndicator(ctx context.Context, symbol, indicator string, period int) ([]upstream.IndicatorPoint, error)
	Profile(ctx context.Context, symbol string) (*upstream.CompanyOverview, error)
	Fundamentals(ctx context.Context, symbol string) (*upstream.Fundamentals, error)
	AnalystRatings(ctx context.Context, symbol string) ([]upstream.AnalystRating, error)
	Historical(ctx context.Context, symbol string, limit int) ([]upstream.Candle, error)
}

// YahooAPI is implemented by *upstream.Yahoo.
type YahooAPI interface {
	Name() string
	Matcher() upstream.Matcher
	Quote(ctx context.Context, symbol string) (*upstream.Quote, error)
	IndexQuote(ctx context.Context, symbol, name string) (*upstream.IndexQuote, error)
	Daily(ctx context.Context, symbol, rng string) ([]upstream.Candle, error)
}

// NewsAPIClient is implemented by *upstream.NewsAPI.
type NewsAPIClient interface {
	Name() string
	Configured() bool
	Everything(ctx context.Context, query string, pageSize int) ([]upstream.NewsArticle, error)
	TopHeadlines(ctx context.Context, category string, pageSize int) ([]upstream.NewsArticle, error)
}

// LLM is implemented by *upstream.Gemini.
type LLM interface {
	Configured() bool
	GenerateText(ctx context.Context, prompt, system string, history []upstream.ChatMessage) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is implemented by *upstream.Pinecone.
type VectorIndex interface {
	Configured() bool
	Query(ctx context.Context, vector []float32, topK int) ([]upstream.VectorMatch, error)
	Upsert(ctx context.Context, vectors []upstream.Vector) (int, error)
}
