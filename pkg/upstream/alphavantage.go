package upstream

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AlphaVantageBaseURL is the production endpoint.
const AlphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageMatcher matches throttling on Alpha Vantage, which answers 200
// with a "Note" or "Information" message when the quota is spent.
func AlphaVantageMatcher() Matcher {
	m := DefaultMatcher()
	m.Substrings = append(m.Substrings,
		"API call frequency",
		"rate limit",
		"premium endpoint",
	)
	return m
}

// AlphaVantage is a client for the Alpha Vantage query API.
type AlphaVantage struct {
	http   *HTTPClient
	apiKey string
	now    func() time.Time
}

// NewAlphaVantage creates a client. An empty apiKey yields ErrNotConfigured on every call.
func NewAlphaVantage(apiKey string, opts ...Option) *AlphaVantage {
	opts = append([]Option{WithMatcher(AlphaVantageMatcher())}, opts...)
	return &AlphaVantage{
		http:   NewHTTPClient("alpha_vantage", AlphaVantageBaseURL, opts...),
		apiKey: apiKey,
		now:    time.Now,
	}
}

// Name returns the provider name.
func (a *AlphaVantage) Name() string { return a.http.Provider() }

// Configured reports whether an API key is set.
func (a *AlphaVantage) Configured() bool { return requireKey(a.Name(), a.apiKey) == nil }

// query calls function with params and returns the top-level fields after
// checking for provider-reported errors.
func (a *AlphaVantage) query(ctx context.Context, function string, params url.Values) (map[string]json.RawMessage, error) {
	if err := requireKey(a.Name(), a.apiKey); err != nil {
		return nil, err
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("function", function)
	q.Set("apikey", a.apiKey)

	var body map[string]json.RawMessage
	if err := a.http.GetJSON(ctx, "/query", q, &body); err != nil {
		return nil, err
	}
	if msg, ok := stringField(body, "Error Message"); ok {
		return nil, a.http.PayloadError(msg)
	}
	for _, field := range []string{"Note", "Information"} {
		if msg, ok := stringField(body, field); ok {
			// Alpha Vantage only uses these fields for quota notices
			return nil, a.http.newError(200, ClassRateLimit, msg, nil)
		}
	}
	return body, nil
}

type avGlobalQuote struct {
	Symbol        string `json:"01. symbol"`
	Open          string `json:"02. open"`
	High          string `json:"03. high"`
	Low           string `json:"04. low"`
	Price         string `json:"05. price"`
	Volume        string `json:"06. volume"`
	PreviousClose string `json:"08. previous close"`
	Change        string `json:"09. change"`
	ChangePercent string `json:"10. change percent"`
}

// Quote fetches GLOBAL_QUOTE for symbol.
func (a *AlphaVantage) Quote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := a.query(ctx, "GLOBAL_QUOTE", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	var gq avGlobalQuote
	if raw, ok := body["Global Quote"]; ok {
		if err := json.Unmarshal(raw, &gq); err != nil {
			return nil, a.http.newError(200, ClassPayload, "decode Global Quote", err)
		}
	}
	if gq.Price == "" {
		return nil, a.http.Empty("no quote for " + symbol)
	}

	price, _ := parseNumber(gq.Price)
	change, _ := parseNumber(gq.Change)
	pct, _ := parseNumber(strings.TrimSuffix(gq.ChangePercent, "%"))
	vol, _ := strconv.ParseInt(gq.Volume, 10, 64)

	return &Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		Volume:        vol,
		Open:          optNumber(gq.Open),
		DayHigh:       optNumber(gq.High),
		DayLow:        optNumber(gq.Low),
		PreviousClose: optNumber(gq.PreviousClose),
		Source:        a.Name(),
		Timestamp:     a.now().UTC(),
	}, nil
}

// Intraday fetches TIME_SERIES_INTRADAY bars, newest first.
// interval is one of 1min, 5min, 15min, 30min, 60min.
func (a *AlphaVantage) Intraday(ctx context.Context, symbol, interval string) ([]Candle, error) {
	if interval == "" {
		interval = "5min"
	}
	body, err := a.query(ctx, "TIME_SERIES_INTRADAY", url.Values{
		"symbol":     {symbol},
		"interval":   {interval},
		"outputsize": {"compact"},
	})
	if err != nil {
		return nil, err
	}
	return a.series(body, "Time Series ("+interval+")", symbol)
}

// Daily fetches TIME_SERIES_DAILY bars, newest first. outputsize is compact or full.
func (a *AlphaVantage) Daily(ctx context.Context, symbol, outputsize string) ([]Candle, error) {
	if outputsize == "" {
		outputsize = "compact"
	}
	body, err := a.query(ctx, "TIME_SERIES_DAILY", url.Values{
		"symbol":     {symbol},
		"outputsize": {outputsize},
	})
	if err != nil {
		return nil, err
	}
	return a.series(body, "Time Series (Daily)", symbol)
}

type avBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func (a *AlphaVantage) series(body map[string]json.RawMessage, field, symbol string) ([]Candle, error) {
	raw, ok := body[field]
	if !ok {
		return nil, a.http.Empty("no " + field + " for " + symbol)
	}
	var bars map[string]avBar
	if err := json.Unmarshal(raw, &bars); err != nil {
		return nil, a.http.newError(200, ClassPayload, "decode "+field, err)
	}
	if len(bars) == 0 {
		return nil, a.http.Empty("no " + field + " for " + symbol)
	}

	out := make([]Candle, 0, len(bars))
	for ts, bar := range bars {
		c := Candle{Time: ts}
		c.Open, _ = parseNumber(bar.Open)
		c.High, _ = parseNumber(bar.High)
		c.Low, _ = parseNumber(bar.Low)
		c.Close, _ = parseNumber(bar.Close)
		c.Volume, _ = strconv.ParseInt(bar.Volume, 10, 64)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time > out[j].Time })
	return out, nil
}

type avOverview struct {
	Symbol               string `json:"Symbol"`
	Name                 string `json:"Name"`
	Description          string `json:"Description"`
	Exchange             string `json:"Exchange"`
	Currency             string `json:"Currency"`
	Country              string `json:"Country"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
	PERatio              string `json:"PERatio"`
	EPS                  string `json:"EPS"`
	DividendYield        string `json:"DividendYield"`
	BookValue            string `json:"BookValue"`
	ProfitMargin         string `json:"ProfitMargin"`
	Beta                 string `json:"Beta"`
	High52Week           string `json:"52WeekHigh"`
	Low52Week            string `json:"52WeekLow"`
}

// Overview fetches the OVERVIEW company profile.
func (a *AlphaVantage) Overview(ctx context.Context, symbol string) (*CompanyOverview, error) {
	body, err := a.query(ctx, "OVERVIEW", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, a.http.newError(200, ClassPayload, "re-encode overview", err)
	}
	var ov avOverview
	if err := json.Unmarshal(raw, &ov); err != nil {
		return nil, a.http.newError(200, ClassPayload, "decode overview", err)
	}
	if ov.Symbol == "" {
		return nil, a.http.Empty("no overview for " + symbol)
	}

	return &CompanyOverview{
		Symbol:        ov.Symbol,
		Name:          ov.Name,
		Description:   ov.Description,
		Exchange:      ov.Exchange,
		Currency:      ov.Currency,
		Country:       ov.Country,
		Sector:        ov.Sector,
		Industry:      ov.Industry,
		MarketCap:     optNumber(ov.MarketCapitalization),
		PERatio:       optNumber(ov.PERatio),
		EPS:           optNumber(ov.EPS),
		DividendYield: optNumber(ov.DividendYield),
		BookValue:     optNumber(ov.BookValue),
		ProfitMargin:  optNumber(ov.ProfitMargin),
		Beta:          optNumber(ov.Beta),
		High52Week:    optNumber(ov.High52Week),
		Low52Week:     optNumber(ov.Low52Week),
		Source:        a.Name(),
	}, nil
}

type avNewsItem struct {
	Title                 string   `json:"title"`
	URL                   string   `json:"url"`
	TimePublished         string   `json:"time_published"`
	Summary               string   `json:"summary"`
	BannerImage           string   `json:"banner_image"`
	Source                string   `json:"source"`
	Authors               []string `json:"authors"`
	OverallSentimentScore float64  `json:"overall_sentiment_score"`
	OverallSentimentLabel string   `json:"overall_sentiment_label"`
	Topics                []struct {
		Topic string `json:"topic"`
	} `json:"topics"`
	TickerSentiment []struct {
		Ticker string `json:"ticker"`
	} `json:"ticker_sentiment"`
}

// NewsSentiment fetches NEWS_SENTIMENT items filtered by tickers and/or topics.
func (a *AlphaVantage) NewsSentiment(ctx context.Context, tickers, topics []string, limit int) ([]NewsArticle, error) {
	params := url.Values{"sort": {"LATEST"}}
	if len(tickers) > 0 {
		params.Set("tickers", strings.Join(tickers, ","))
	}
	if len(topics) > 0 {
		params.Set("topics", strings.Join(topics, ","))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := a.query(ctx, "NEWS_SENTIMENT", params)
	if err != nil {
		return nil, err
	}
	var feed []avNewsItem
	if raw, ok := body["feed"]; ok {
		if err := json.Unmarshal(raw, &feed); err != nil {
			return nil, a.http.newError(200, ClassPayload, "decode news feed", err)
		}
	}
	if len(feed) == 0 {
		return nil, a.http.Empty("no news")
	}

	out := make([]NewsArticle, 0, len(feed))
	for _, item := range feed {
		published, _ := time.Parse("20060102T150405", item.TimePublished)
		art := NewsArticle{
			Title:          item.Title,
			Description:    item.Summary,
			URL:            item.URL,
			ImageURL:       item.BannerImage,
			Source:         item.Source,
			Author:         strings.Join(item.Authors, ", "),
			PublishedAt:    published.UTC(),
			SentimentScore: ptr(item.OverallSentimentScore),
			SentimentLabel: item.OverallSentimentLabel,
		}
		for _, t := range item.Topics {
			art.Topics = append(art.Topics, t.Topic)
		}
		for _, t := range item.TickerSentiment {
			art.Symbols = append(art.Symbols, t.Ticker)
		}
		out = append(out, art)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// stringField returns body[name] when it is a non-empty JSON string.
func stringField(body map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := body[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

// parseNumber parses a provider numeric string. "None", "-" and "" are not numbers.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "None", "-", "null":
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func optNumber(s string) *float64 {
	if f, ok := parseNumber(s); ok {
		return &f
	}
	return nil
}
