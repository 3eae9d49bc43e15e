package service

import (
	"time"

	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

// TimeSeries is a list of bars for one symbol, newest first.
type TimeSeries struct {
	Symbol   string            `json:"symbol"`
	Interval string            `json:"interval"`
	Data     []upstream.Candle `json:"data"`
	Source   string            `json:"source"`
}

// Peers lists quotes for companies in the same sector.
type Peers struct {
	Symbol string           `json:"symbol"`
	Sector string           `json:"sector"`
	Peers  []upstream.Quote `json:"peers"`
	Mock   bool             `json:"mock,omitempty"`
}

// MarketStatus is the trading session state of the Indian market.
type MarketStatus struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	NextOpen  string `json:"next_open"`
	NextClose string `json:"next_close"`
	Timezone  string `json:"timezone"`
}

// MarketOverview is the Indian market summary.
type MarketOverview struct {
	Indices   []upstream.IndexQuote `json:"indices"`
	Breadth   upstream.Breadth      `json:"breadth"`
	Timestamp time.Time             `json:"timestamp"`
	Degraded  bool                  `json:"degraded,omitempty"`
}

// Mover is one gainer or loser within an index.
type Mover struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// IndexMovers are the top gainers and losers of an index.
type IndexMovers struct {
	IndexName string  `json:"index_name"`
	Gainers   []Mover `json:"gainers"`
	Losers    []Mover `json:"losers"`
}

// News is a list of articles with the provider they came from.
type News struct {
	News   []upstream.NewsArticle `json:"news"`
	Source string                 `json:"source"`
}

// AnalysisOptions selects the sections of a stock analysis.
type AnalysisOptions struct {
	News         bool
	Fundamentals bool
	Technicals   bool
}

// TechnicalSnapshot is the latest value of each indicator.
type TechnicalSnapshot struct {
	RSI    *float64 `json:"rsi,omitempty"`
	MACD   *float64 `json:"macd,omitempty"`
	Signal *float64 `json:"signal,omitempty"`
	SMA    *float64 `json:"sma,omitempty"`
}

// Sentiment scores range from -1 (bearish) to 1 (bullish); 0.5 is the
// neutral default.
type Sentiment struct {
	Technical   float64 `json:"technical"`
	Fundamental float64 `json:"fundamental"`
	News        float64 `json:"news"`
	Overall     float64 `json:"overall"`
}

// StockAnalysis is the composite analysis of one stock.
type StockAnalysis struct {
	Symbol         string                   `json:"symbol"`
	Price          float64                  `json:"price"`
	Change         float64                  `json:"change"`
	ChangePercent  float64                  `json:"change_percent"`
	Analysis       string                   `json:"analysis"`
	AnalysisSource string                   `json:"analysis_source"`
	Technical      *TechnicalSnapshot       `json:"technical,omitempty"`
	Fundamentals   *upstream.Fundamentals   `json:"fundamentals,omitempty"`
	Ratings        []upstream.AnalystRating `json:"ratings,omitempty"`
	News           []upstream.NewsArticle   `json:"news,omitempty"`
	Sentiment      Sentiment                `json:"sentiment"`
	Timestamp      time.Time                `json:"timestamp"`
}

// TechnicalAnalysis holds indicator series, newest first.
type TechnicalAnalysis struct {
	Symbol    string                    `json:"symbol"`
	Period    int                       `json:"period"`
	RSI       []upstream.IndicatorPoint `json:"rsi"`
	MACD      []upstream.IndicatorPoint `json:"macd"`
	SMA       []upstream.IndicatorPoint `json:"sma,omitempty"`
	Source    string                    `json:"source"`
	Timestamp time.Time                 `json:"timestamp"`
}

// FundamentalAnalysis combines fundamentals with analyst ratings.
type FundamentalAnalysis struct {
	Symbol       string                   `json:"symbol"`
	Fundamentals upstream.Fundamentals    `json:"fundamentals"`
	Ratings      []upstream.AnalystRating `json:"ratings"`
	Consensus    string                   `json:"consensus"`
	Source       string                   `json:"source"`
	Timestamp    time.Time                `json:"timestamp"`
}

// ChatRequest is a message sent to FinGenie.
type ChatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// ChatResponse is FinGenie's reply.
type ChatResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
