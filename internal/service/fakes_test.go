package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/cache"
	"github.com/Sternrassler/finpath-api/pkg/fetch"
	"github.com/Sternrassler/finpath-api/pkg/ratelimit"
	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// calls counts invocations by name.
type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *calls) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[string]int{}
	}
	c.n[name]++
}

func (c *calls) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

var (
	errThrottled = &upstream.Error{Provider: "yahoo", StatusCode: 429, Class: upstream.ClassRateLimit, Message: "Too Many Requests"}
	errServer    = &upstream.Error{Provider: "fmp", StatusCode: 503, Class: upstream.ClassServer, Message: "unavailable"}
	errNotFound  = &upstream.Error{Provider: "fmp", StatusCode: 404, Class: upstream.ClassClient, Message: "not found"}
)

type fakeFMP struct {
	calls
	quote        func(symbol string) (*upstream.Quote, error)
	index        func(symbol, name string) (*upstream.IndexQuote, error)
	indicator    func(symbol, indicator string, period int) ([]upstream.IndicatorPoint, error)
	fundamentals func(symbol string) (*upstream.Fundamentals, error)
	ratings      func(symbol string) ([]upstream.AnalystRating, error)
	historical   func(symbol string, limit int) ([]upstream.Candle, error)
	profile      func(symbol string) (*upstream.CompanyOverview, error)
}

func (f *fakeFMP) Name() string     { return "fmp" }
func (f *fakeFMP) Configured() bool { return true }

func (f *fakeFMP) Quote(_ context.Context, symbol string) (*upstream.Quote, error) {
	f.inc("quote")
	if f.quote == nil {
		return nil, errServer
	}
	return f.quote(symbol)
}

func (f *fakeFMP) IndexQuote(_ context.Context, symbol, name string) (*upstream.IndexQuote, error) {
	f.inc("index")
	if f.index == nil {
		return nil, errServer
	}
	return f.index(symbol, name)
}

func (f *fakeFMP) TechnicalIndicator(_ context.Context, symbol, indicator string, period int) ([]upstream.IndicatorPoint, error) {
	f.inc("indicator")
	if f.indicator == nil {
		return nil, errServer
	}
	return f.indicator(symbol, indicator, period)
}

func (f *fakeFMP) Profile(_ context.Context, symbol string) (*upstream.CompanyOverview, error) {
	f.inc("profile")
	if f.profile == nil {
		return nil, errServer
	}
	return f.profile(symbol)
}

func (f *fakeFMP) Fundamentals(_ context.Context, symbol string) (*upstream.Fundamentals, error) {
	f.inc("fundamentals")
	if f.fundamentals == nil {
		return nil, errServer
	}
	return f.fundamentals(symbol)
}

func (f *fakeFMP) AnalystRatings(_ context.Context, symbol string) ([]upstream.AnalystRating, error) {
	f.inc("ratings")
	if f.ratings == nil {
		return nil, errServer
	}
	return f.ratings(symbol)
}

func (f *fakeFMP) Historical(_ context.Context, symbol string, limit int) ([]upstream.Candle, error) {
	f.inc("historical")
	if f.historical == nil {
		return nil, errServer
	}
	return f.historical(symbol, limit)
}

type fakeYahoo struct {
	calls
	quote func(symbol string) (*upstream.Quote, error)
	index func(symbol, name string) (*upstream.IndexQuote, error)
	daily func(symbol, rng string) ([]upstream.Candle, error)
}

func (y *fakeYahoo) Name() string              { return "yahoo" }
func (y *fakeYahoo) Matcher() upstream.Matcher { return upstream.DefaultMatcher() }

func (y *fakeYahoo) Quote(_ context.Context, symbol string) (*upstream.Quote, error) {
	y.inc("quote")
	if y.quote == nil {
		return nil, errThrottled
	}
	return y.quote(symbol)
}

func (y *fakeYahoo) IndexQuote(_ context.Context, symbol, name string) (*upstream.IndexQuote, error) {
	y.inc("index")
	if y.index == nil {
		return nil, errThrottled
	}
	return y.index(symbol, name)
}

func (y *fakeYahoo) Daily(_ context.Context, symbol, rng string) ([]upstream.Candle, error) {
	y.inc("daily")
	if y.daily == nil {
		return nil, errThrottled
	}
	return y.daily(symbol, rng)
}

type fakeAV struct {
	calls
	overview func(symbol string) (*upstream.CompanyOverview, error)
	daily    func(symbol, size string) ([]upstream.Candle, error)
	intraday func(symbol, interval string) ([]upstream.Candle, error)
	news     func(tickers, topics []string, limit int) ([]upstream.NewsArticle, error)
}

func (a *fakeAV) Name() string     { return "alpha_vantage" }
func (a *fakeAV) Configured() bool { return true }

func (a *fakeAV) Quote(context.Context, string) (*upstream.Quote, error) {
	a.inc("quote")
	return nil, &upstream.Error{Provider: "alpha_vantage", StatusCode: 200, Class: upstream.ClassRateLimit, Message: "API call frequency"}
}

func (a *fakeAV) Intraday(_ context.Context, symbol, interval string) ([]upstream.Candle, error) {
	a.inc("intraday")
	if a.intraday == nil {
		return nil, errServer
	}
	return a.intraday(symbol, interval)
}

func (a *fakeAV) Daily(_ context.Context, symbol, size string) ([]upstream.Candle, error) {
	a.inc("daily")
	if a.daily == nil {
		return nil, errServer
	}
	return a.daily(symbol, size)
}

func (a *fakeAV) Overview(_ context.Context, symbol string) (*upstream.CompanyOverview, error) {
	a.inc("overview")
	if a.overview == nil {
		return nil, errServer
	}
	return a.overview(symbol)
}

func (a *fakeAV) NewsSentiment(_ context.Context, tickers, topics []string, limit int) ([]upstream.NewsArticle, error) {
	a.inc("news")
	if a.news == nil {
		return nil, errServer
	}
	return a.news(tickers, topics, limit)
}

type fakeNews struct {
	calls
	everything func(query string, n int) ([]upstream.NewsArticle, error)
	headlines  func(category string, n int) ([]upstream.NewsArticle, error)
}

func (n *fakeNews) Name() string     { return "newsapi" }
func (n *fakeNews) Configured() bool { return true }

func (n *fakeNews) Everything(_ context.Context, query string, size int) ([]upstream.NewsArticle, error) {
	n.inc("everything")
	if n.everything == nil {
		return nil, errServer
	}
	return n.everything(query, size)
}

func (n *fakeNews) TopHeadlines(_ context.Context, category string, size int) ([]upstream.NewsArticle, error) {
	n.inc("headlines")
	if n.headlines == nil {
		return nil, errServer
	}
	return n.headlines(category, size)
}

type fakeLLM struct {
	calls
	mu       sync.Mutex
	generate func(prompt, system string, history []upstream.ChatMessage) (string, error)
	embed    func(text string) ([]float32, error)
	prompts  []string
	systems  []string
	history  [][]upstream.ChatMessage
}

func (l *fakeLLM) Configured() bool { return true }

func (l *fakeLLM) GenerateText(_ context.Context, prompt, system string, history []upstream.ChatMessage) (string, error) {
	l.inc("generate")
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.systems = append(l.systems, system)
	l.history = append(l.history, history)
	l.mu.Unlock()
	if l.generate == nil {
		return "", errServer
	}
	return l.generate(prompt, system, history)
}

func (l *fakeLLM) Embed(_ context.Context, text string) ([]float32, error) {
	l.inc("embed")
	if l.embed == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return l.embed(text)
}

type fakeVectors struct {
	calls
	mu      sync.Mutex
	matches []upstream.VectorMatch
	stored  []upstream.Vector
}

func (v *fakeVectors) Configured() bool { return true }

func (v *fakeVectors) Query(_ context.Context, _ []float32, topK int) ([]upstream.VectorMatch, error) {
	v.inc("query")
	if len(v.matches) > topK {
		return v.matches[:topK], nil
	}
	return v.matches, nil
}

func (v *fakeVectors) Upsert(_ context.Context, vectors []upstream.Vector) (int, error) {
	v.inc("upsert")
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stored = append(v.stored, vectors...)
	return len(vectors), nil
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type testEnv struct {
	svc   *Service
	store *cache.MemoryStore
	clock *testClock
}

// setupService builds a Service over an in-memory cache with instant retries
// and batches. d.Cache, d.Retrier, d.Batch and d.YahooWindow are filled in.
func setupService(t *testing.T, d Deps) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2025, 5, 13, 4, 30, 0, 0, time.UTC)}
	store := cache.NewMemoryStore()
	store.SetClock(clock.Now)

	d.Cache = cache.NewManager(store, cache.WithClock(clock.Now))
	d.YahooWindow = ratelimit.NewWindow("yahoo", 1000, time.Minute, ratelimit.WithSleep(noSleep))
	d.Retrier = fetch.NewRetrier(
		fetch.WithMaxRetries(3),
		fetch.WithSleep(noSleep),
		fetch.WithJitter(func() time.Duration { return 0 }),
		fetch.WithWindow(d.YahooWindow),
	)
	d.Batch = fetch.BatchOptions{Size: 2, Delay: time.Second, Sleep: noSleep}

	return &testEnv{
		svc:   New(d, WithClock(clock.Now)),
		store: store,
		clock: clock,
	}
}

func quoteFn(price float64, source string) func(string) (*upstream.Quote, error) {
	return func(symbol string) (*upstream.Quote, error) {
		return &upstream.Quote{Symbol: symbol, Price: price, Change: 10, ChangePercent: 0.5, Volume: 1_000_000, Source: source}, nil
	}
}

// risingBars returns n daily bars, newest first, with closes rising by one
// per day from 100.
func risingBars(n int) []upstream.Candle {
	out := make([]upstream.Candle, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		day := n - 1 - i
		c := 100 + float64(day)
		out[i] = upstream.Candle{
			Time:  start.AddDate(0, 0, day).Format("2006-01-02"),
			Open:  c - 0.5,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return out
}
