package upstream

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// YahooBaseURL is the production chart API host.
const YahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo is a client for the public Yahoo Finance chart API. It needs no key
// but throttles aggressively, so callers gate it with a ratelimit.Window.
type Yahoo struct {
	http *HTTPClient
	now  func() time.Time
}

// NewYahoo creates a client.
func NewYahoo(opts ...Option) *Yahoo {
	opts = append([]Option{WithHeader("User-Agent", "Mozilla/5.0 (compatible; finpath-api)")}, opts...)
	return &Yahoo{
		http: NewHTTPClient("yahoo", YahooBaseURL, opts...),
		now:  time.Now,
	}
}

// Name returns the provider name.
func (y *Yahoo) Name() string { return y.http.Provider() }

// Matcher returns the rate-limit matcher used for this provider.
func (y *Yahoo) Matcher() Matcher { return y.http.Matcher() }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				Currency           string   `json:"currency"`
				ShortName          string   `json:"shortName"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
				PreviousClose      *float64 `json:"previousClose"`
				RegularMarketVol   int64    `json:"regularMarketVolume"`
				DayHigh            *float64 `json:"regularMarketDayHigh"`
				DayLow             *float64 `json:"regularMarketDayLow"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) chart(ctx context.Context, symbol, interval, rng string) (*yahooChart, error) {
	var body yahooChart
	params := url.Values{
		"interval": {interval},
		"range":    {rng},
	}
	if err := y.http.GetJSON(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, &body); err != nil {
		return nil, err
	}
	if e := body.Chart.Error; e != nil {
		return nil, y.http.PayloadError(fmt.Sprintf("%s: %s", e.Code, e.Description))
	}
	if len(body.Chart.Result) == 0 {
		return nil, y.http.Empty("no chart for " + symbol)
	}
	return &body, nil
}

// Quote returns the latest price with change computed against the previous close.
func (y *Yahoo) Quote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := y.chart(ctx, symbol, "1d", "5d")
	if err != nil {
		return nil, err
	}
	meta := body.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil {
		return nil, y.http.Empty("no price for " + symbol)
	}
	prev := meta.PreviousClose
	if prev == nil {
		prev = meta.ChartPreviousClose
	}

	q := &Quote{
		Symbol:        symbol,
		Name:          meta.ShortName,
		Price:         *meta.RegularMarketPrice,
		Volume:        meta.RegularMarketVol,
		DayHigh:       meta.DayHigh,
		DayLow:        meta.DayLow,
		PreviousClose: prev,
		Currency:      meta.Currency,
		Source:        y.Name(),
		Timestamp:     y.now().UTC(),
	}
	if prev != nil {
		q.Change, q.ChangePercent = PriceChange(*meta.RegularMarketPrice, *prev)
	}
	return q, nil
}

// IndexQuote fetches an index level by its ^-prefixed ticker.
func (y *Yahoo) IndexQuote(ctx context.Context, symbol, name string) (*IndexQuote, error) {
	q, err := y.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &IndexQuote{
		Symbol:        symbol,
		Name:          name,
		Value:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Source:        y.Name(),
	}, nil
}

// Daily returns daily bars for rng (e.g. "3mo", "1y"), newest first.
// Bars with a missing close are skipped.
func (y *Yahoo) Daily(ctx context.Context, symbol, rng string) ([]Candle, error) {
	if rng == "" {
		rng = "3mo"
	}
	body, err := y.chart(ctx, symbol, "1d", rng)
	if err != nil {
		return nil, err
	}
	res := body.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, y.http.Empty("no bars for " + symbol)
	}
	bars := res.Indicators.Quote[0]

	out := make([]Candle, 0, len(res.Timestamp))
	for i := len(res.Timestamp) - 1; i >= 0; i-- {
		closePx := at(bars.Close, i)
		if closePx == nil {
			continue
		}
		c := Candle{
			Time:  time.Unix(res.Timestamp[i], 0).UTC().Format("2006-01-02"),
			Close: *closePx,
		}
		if v := at(bars.Open, i); v != nil {
			c.Open = *v
		}
		if v := at(bars.High, i); v != nil {
			c.High = *v
		}
		if v := at(bars.Low, i); v != nil {
			c.Low = *v
		}
		if v := at(bars.Volume, i); v != nil {
			c.Volume = *v
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, y.http.Empty("no bars for " + symbol)
	}
	return out, nil
}

func at[T any](s []*T, i int) *T {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// PriceChange returns price-prev and the percentage change, rounded to
// 2 decimal places. A zero prev yields a zero percentage.
func PriceChange(price, prev float64) (change, percent float64) {
	p := decimal.NewFromFloat(price)
	b := decimal.NewFromFloat(prev)
	diff := p.Sub(b)
	change, _ = diff.Round(2).Float64()
	if b.IsZero() {
		return change, 0
	}
	percent, _ = diff.Div(b).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return change, percent
}
