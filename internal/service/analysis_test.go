package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

func ptrTo[T any](v T) *T { return &v }

func TestTechnical_FMP(t *testing.T) {
	var mu sync.Mutex
	periods := map[string]int{}
	fmp := &fakeFMP{indicator: func(symbol, indicator string, period int) ([]upstream.IndicatorPoint, error) {
		mu.Lock()
		periods[indicator] = period
		mu.Unlock()
		return []upstream.IndicatorPoint{{Date: "2025-05-12", Value: 61.2}}, nil
	}}
	yahoo := &fakeYahoo{}
	env := setupService(t, Deps{FMP: fmp, Yahoo: yahoo})

	ta, err := env.svc.Technical(context.Background(), "TCS.NS", 21)
	if err != nil {
		t.Fatalf("Technical() error = %v", err)
	}
	if ta.Source != "fmp" {
		t.Errorf("Source = %q, want fmp", ta.Source)
	}
	if ta.Period != 21 {
		t.Errorf("Period = %d, want 21", ta.Period)
	}
	if periods["rsi"] != 21 || periods["macd"] != 26 {
		t.Errorf("indicator periods = %v, want rsi 21 and macd 26", periods)
	}
	if got := yahoo.get("daily"); got != 0 {
		t.Errorf("yahoo calls = %d, want 0", got)
	}
}

func TestTechnical_ComputedFallback(t *testing.T) {
	var gotRange string
	yahoo := &fakeYahoo{daily: func(symbol, rng string) ([]upstream.Candle, error) {
		gotRange = rng
		return risingBars(60), nil
	}}
	env := setupService(t, Deps{FMP: &fakeFMP{}, Yahoo: yahoo})

	ta, err := env.svc.Technical(context.Background(), "INFY.NS", 0)
	if err != nil {
		t.Fatalf("Technical() error = %v", err)
	}
	if ta.Source != "computed" {
		t.Errorf("Source = %q, want computed", ta.Source)
	}
	if ta.Period != 14 {
		t.Errorf("Period = %d, want default 14", ta.Period)
	}
	if gotRange != "1y" {
		t.Errorf("yahoo range = %q, want 1y", gotRange)
	}
	if len(ta.RSI) == 0 || len(ta.MACD) == 0 || len(ta.SMA) == 0 {
		t.Errorf("series lengths rsi=%d macd=%d sma=%d, want all non-empty", len(ta.RSI), len(ta.MACD), len(ta.SMA))
	}
	if ta.Symbol != "INFY.NS" {
		t.Errorf("Symbol = %q, want INFY.NS", ta.Symbol)
	}
}

func TestTechnical_TooFewBars(t *testing.T) {
	yahoo := &fakeYahoo{daily: func(symbol, rng string) ([]upstream.Candle, error) {
		return risingBars(5), nil
	}}
	env := setupService(t, Deps{Yahoo: yahoo})

	_, err := env.svc.Technical(context.Background(), "INFY.NS", 14)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Technical() error = %v, want ErrUnavailable", err)
	}
	// An empty payload is permanent and not retried.
	if got := yahoo.get("daily"); got != 1 {
		t.Errorf("yahoo calls = %d, want 1", got)
	}
}

func TestFundamentals(t *testing.T) {
	tests := []struct {
		name      string
		ratings   func(string) ([]upstream.AnalystRating, error)
		consensus string
		nRatings  int
	}{
		{
			name: "with ratings",
			ratings: func(string) ([]upstream.AnalystRating, error) {
				return []upstream.AnalystRating{{Date: "2025-05-01", StrongBuy: 10, Buy: 12, Hold: 5, Sell: 1}}, nil
			},
			consensus: "buy",
			nRatings:  1,
		},
		{
			name:      "ratings unavailable",
			ratings:   nil,
			consensus: "none",
			nRatings:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fmp := &fakeFMP{
				fundamentals: func(symbol string) (*upstream.Fundamentals, error) {
					return &upstream.Fundamentals{Profile: upstream.CompanyOverview{Symbol: symbol, Name: "Tata Consultancy Services"}}, nil
				},
				ratings: tt.ratings,
			}
			env := setupService(t, Deps{FMP: fmp})

			fa, err := env.svc.Fundamentals(context.Background(), "TCS.NS")
			if err != nil {
				t.Fatalf("Fundamentals() error = %v", err)
			}
			if fa.Consensus != tt.consensus {
				t.Errorf("Consensus = %q, want %q", fa.Consensus, tt.consensus)
			}
			if fa.Ratings == nil {
				t.Error("Ratings = nil, want a slice")
			}
			if len(fa.Ratings) != tt.nRatings {
				t.Errorf("len(Ratings) = %d, want %d", len(fa.Ratings), tt.nRatings)
			}
			if fa.Source != "fmp" {
				t.Errorf("Source = %q, want fmp", fa.Source)
			}
		})
	}
}

func TestFundamentals_AlphaVantageFallback(t *testing.T) {
	av := &fakeAV{overview: func(symbol string) (*upstream.CompanyOverview, error) {
		return &upstream.CompanyOverview{Symbol: symbol, Name: "Wipro", PERatio: ptrTo(21.5)}, nil
	}}
	env := setupService(t, Deps{FMP: &fakeFMP{}, AlphaVantage: av})

	fa, err := env.svc.Fundamentals(context.Background(), "WIPRO.NS")
	if err != nil {
		t.Fatalf("Fundamentals() error = %v", err)
	}
	if fa.Source != "alpha_vantage" {
		t.Errorf("Source = %q, want alpha_vantage", fa.Source)
	}
	if fa.Fundamentals.Ratios.PERatio == nil || *fa.Fundamentals.Ratios.PERatio != 21.5 {
		t.Errorf("PERatio = %v, want 21.5", fa.Fundamentals.Ratios.PERatio)
	}
}

func TestStockAnalysis_WithCommentary(t *testing.T) {
	fmp := &fakeFMP{
		quote: quoteFn(3850, "fmp"),
		indicator: func(symbol, indicator string, period int) ([]upstream.IndicatorPoint, error) {
			if indicator == "macd" {
				return []upstream.IndicatorPoint{{Date: "2025-05-12", Value: 12, Signal: ptrTo(8.0)}}, nil
			}
			return []upstream.IndicatorPoint{{Date: "2025-05-12", Value: 58}}, nil
		},
	}
	llm := &fakeLLM{generate: func(prompt, system string, history []upstream.ChatMessage) (string, error) {
		return "The outlook is bullish with positive momentum.", nil
	}}
	env := setupService(t, Deps{FMP: fmp, LLM: llm})

	a, err := env.svc.StockAnalysis(context.Background(), "TCS.NS", AnalysisOptions{Technicals: true})
	if err != nil {
		t.Fatalf("StockAnalysis() error = %v", err)
	}
	if a.AnalysisSource != "gemini" {
		t.Errorf("AnalysisSource = %q, want gemini", a.AnalysisSource)
	}
	if a.Price != 3850 {
		t.Errorf("Price = %v, want 3850", a.Price)
	}
	if a.Technical == nil || a.Technical.RSI == nil || *a.Technical.RSI != 58 {
		t.Errorf("Technical = %+v, want RSI 58", a.Technical)
	}
	if a.Sentiment.Technical != 0.8 {
		t.Errorf("Sentiment.Technical = %v, want 0.8", a.Sentiment.Technical)
	}
	if a.Sentiment.Overall != 0.7 {
		t.Errorf("Sentiment.Overall = %v, want 0.7", a.Sentiment.Overall)
	}

	if len(llm.prompts) != 1 {
		t.Fatalf("generate calls = %d, want 1", len(llm.prompts))
	}
	prompt := llm.prompts[0]
	for _, want := range []string{"Ticker: TCS.NS", "Current Price: ₹3850.00", "==== TECHNICAL INDICATORS ====", "RSI(14): 58.00"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "==== RECENT NEWS ====") {
		t.Error("prompt has a news section although news was not requested")
	}
	if llm.systems[0] != analystSystemPrompt {
		t.Error("system prompt not passed to the model")
	}
}

func TestStockAnalysis_ModelUnavailable(t *testing.T) {
	fmp := &fakeFMP{quote: quoteFn(1500, "fmp")}
	env := setupService(t, Deps{FMP: fmp, LLM: &fakeLLM{}})

	a, err := env.svc.StockAnalysis(context.Background(), "INFY.NS", AnalysisOptions{News: true, Fundamentals: true})
	if err != nil {
		t.Fatalf("StockAnalysis() error = %v", err)
	}
	if a.AnalysisSource != "unavailable" {
		t.Errorf("AnalysisSource = %q, want unavailable", a.AnalysisSource)
	}
	if a.Analysis != analysisUnavailable {
		t.Errorf("Analysis = %q, want the unavailable notice", a.Analysis)
	}
	if a.Fundamentals != nil {
		t.Error("Fundamentals set although the provider failed")
	}
	if a.Sentiment != (Sentiment{Technical: 0.5, Fundamental: 0.5, News: 0.5, Overall: 0.5}) {
		t.Errorf("Sentiment = %+v, want neutral", a.Sentiment)
	}
}

func TestStockAnalysis_RequiresQuote(t *testing.T) {
	llm := &fakeLLM{}
	env := setupService(t, Deps{FMP: &fakeFMP{}, LLM: llm})

	_, err := env.svc.StockAnalysis(context.Background(), "INFY.NS", AnalysisOptions{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("StockAnalysis() error = %v, want ErrUnavailable", err)
	}
	if got := llm.get("generate"); got != 0 {
		t.Errorf("generate calls = %d, want 0", got)
	}
}

func TestScoreSentiment(t *testing.T) {
	tests := []struct {
		name string
		in   StockAnalysis
		want Sentiment
	}{
		{
			name: "neutral",
			in:   StockAnalysis{},
			want: Sentiment{0.5, 0.5, 0.5, 0.5},
		},
		{
			name: "bearish macd",
			in:   StockAnalysis{Technical: &TechnicalSnapshot{MACD: ptrTo(-1.0), Signal: ptrTo(0.5)}},
			want: Sentiment{-0.8, 0.5, 0.5, 0.5},
		},
		{
			name: "sell consensus",
			in:   StockAnalysis{Ratings: []upstream.AnalystRating{{Sell: 5, StrongSell: 3, Hold: 2}}},
			want: Sentiment{0.5, -0.7, 0.5, 0.5},
		},
		{
			name: "news average",
			in: StockAnalysis{News: []upstream.NewsArticle{
				{SentimentScore: ptrTo(0.3)},
				{SentimentScore: ptrTo(-0.1)},
				{},
			}},
			want: Sentiment{0.5, 0.5, 0.1, 0.5},
		},
		{
			name: "bearish commentary",
			in:   StockAnalysis{AnalysisSource: "gemini", Analysis: "Bearish signals and negative earnings."},
			want: Sentiment{0.5, 0.5, 0.5, -0.7},
		},
		{
			name: "notice is not scored",
			in:   StockAnalysis{AnalysisSource: "unavailable", Analysis: "bullish bullish"},
			want: Sentiment{0.5, 0.5, 0.5, 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreSentiment(&tt.in); got != tt.want {
				t.Errorf("scoreSentiment() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
