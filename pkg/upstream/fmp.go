package upstream

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FMPBaseURL is the production endpoint of Financial Modeling Prep.
const FMPBaseURL = "https://financialmodelingprep.com/api/v3"

// FMP is a client for the Financial Modeling Prep v3 API.
type FMP struct {
	http   *HTTPClient
	apiKey string
	now    func() time.Time
}

// NewFMP creates a client. An empty apiKey yields ErrNotConfigured on every call.
func NewFMP(apiKey string, opts ...Option) *FMP {
	return &FMP{
		http:   NewHTTPClient("fmp", FMPBaseURL, opts...),
		apiKey: apiKey,
		now:    time.Now,
	}
}

// Name returns the provider name.
func (f *FMP) Name() string { return f.http.Provider() }

// Configured reports whether an API key is set.
func (f *FMP) Configured() bool { return requireKey(f.Name(), f.apiKey) == nil }

func (f *FMP) get(ctx context.Context, path string, params url.Values, dst any) error {
	if err := requireKey(f.Name(), f.apiKey); err != nil {
		return err
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("apikey", f.apiKey)
	return f.http.GetJSON(ctx, path, q, dst)
}

// FMPSymbol converts an index ticker such as ^NSEI to the FMP form (NSEI).
func FMPSymbol(symbol string) string {
	return strings.TrimPrefix(symbol, "^")
}

type fmpQuote struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Price             *float64 `json:"price"`
	Change            float64  `json:"change"`
	ChangesPercentage float64  `json:"changesPercentage"`
	Volume            int64    `json:"volume"`
	Open              *float64 `json:"open"`
	DayHigh           *float64 `json:"dayHigh"`
	DayLow            *float64 `json:"dayLow"`
	PreviousClose     *float64 `json:"previousClose"`
	MarketCap         *float64 `json:"marketCap"`
}

// Quote fetches /quote/{symbol}.
func (f *FMP) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var rows []fmpQuote
	if err := f.get(ctx, "/quote/"+url.PathEscape(symbol), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].Price == nil {
		return nil, f.http.Empty("no quote for " + symbol)
	}
	r := rows[0]
	return &Quote{
		Symbol:        symbol,
		Name:          r.Name,
		Price:         *r.Price,
		Change:        r.Change,
		ChangePercent: r.ChangesPercentage,
		Volume:        r.Volume,
		Open:          r.Open,
		DayHigh:       r.DayHigh,
		DayLow:        r.DayLow,
		PreviousClose: r.PreviousClose,
		MarketCap:     r.MarketCap,
		Source:        f.Name(),
		Timestamp:     f.now().UTC(),
	}, nil
}

// IndexQuote fetches an index level, accepting ^-prefixed tickers.
func (f *FMP) IndexQuote(ctx context.Context, symbol, name string) (*IndexQuote, error) {
	q, err := f.Quote(ctx, FMPSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return &IndexQuote{
		Symbol:        symbol,
		Name:          name,
		Value:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Source:        f.Name(),
	}, nil
}

// TechnicalIndicator fetches daily indicator values (rsi, sma, ema, ...) newest first.
func (f *FMP) TechnicalIndicator(ctx context.Context, symbol, indicator string, period int) ([]IndicatorPoint, error) {
	indicator = strings.ToLower(indicator)
	if period <= 0 {
		period = 14
	}
	var rows []map[string]any
	params := url.Values{
		"type":   {indicator},
		"period": {strconv.Itoa(period)},
	}
	if err := f.get(ctx, "/technical_indicator/daily/"+url.PathEscape(symbol), params, &rows); err != nil {
		return nil, err
	}

	out := make([]IndicatorPoint, 0, len(rows))
	for _, row := range rows {
		v, ok := row[indicator].(float64)
		if !ok {
			continue
		}
		p := IndicatorPoint{Value: v}
		p.Date, _ = row["date"].(string)
		if c, ok := row["close"].(float64); ok {
			p.Close = ptr(c)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, f.http.Empty("no " + indicator + " for " + symbol)
	}
	return out, nil
}

type fmpProfile struct {
	Symbol      string   `json:"symbol"`
	CompanyName string   `json:"companyName"`
	Description string   `json:"description"`
	Exchange    string   `json:"exchangeShortName"`
	Currency    string   `json:"currency"`
	Country     string   `json:"country"`
	Sector      string   `json:"sector"`
	Industry    string   `json:"industry"`
	Website     string   `json:"website"`
	MktCap      *float64 `json:"mktCap"`
	Beta        *float64 `json:"beta"`
	Range       string   `json:"range"`
}

type fmpRatiosTTM struct {
	PERatio         *float64 `json:"peRatioTTM"`
	PriceToBook     *float64 `json:"priceToBookRatioTTM"`
	PriceToSales    *float64 `json:"priceToSalesRatioTTM"`
	DebtToEquity    *float64 `json:"debtEquityRatioTTM"`
	ReturnOnEquity  *float64 `json:"returnOnEquityTTM"`
	CurrentRatio    *float64 `json:"currentRatioTTM"`
	DividendYield   *float64 `json:"dividendYielTTM"`
	NetProfitMargin *float64 `json:"netProfitMarginTTM"`
}

type fmpKeyMetricsTTM struct {
	RevenuePerShare      *float64 `json:"revenuePerShareTTM"`
	NetIncomePerShare    *float64 `json:"netIncomePerShareTTM"`
	BookValuePerShare    *float64 `json:"bookValuePerShareTTM"`
	FreeCashFlowPerShare *float64 `json:"freeCashFlowPerShareTTM"`
}

// Profile fetches /profile/{symbol}.
func (f *FMP) Profile(ctx context.Context, symbol string) (*CompanyOverview, error) {
	var rows []fmpProfile
	if err := f.get(ctx, "/profile/"+url.PathEscape(symbol), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].Symbol == "" {
		return nil, f.http.Empty("no profile for " + symbol)
	}
	p := rows[0]
	ov := &CompanyOverview{
		Symbol:      p.Symbol,
		Name:        p.CompanyName,
		Description: p.Description,
		Exchange:    p.Exchange,
		Currency:    p.Currency,
		Country:     p.Country,
		Sector:      p.Sector,
		Industry:    p.Industry,
		Website:     p.Website,
		MarketCap:   p.MktCap,
		Beta:        p.Beta,
		Source:      f.Name(),
	}
	// range is "low-high"
	if lo, hi, ok := strings.Cut(p.Range, "-"); ok {
		ov.Low52Week = optNumber(lo)
		ov.High52Week = optNumber(hi)
	}
	return ov, nil
}

// Fundamentals fetches the profile plus TTM ratios and key metrics. Only the
// profile is required; missing ratios or metrics leave those fields empty.
func (f *FMP) Fundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	profile, err := f.Profile(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := &Fundamentals{Profile: *profile}

	var ratios []fmpRatiosTTM
	if err := f.get(ctx, "/ratios-ttm/"+url.PathEscape(symbol), nil, &ratios); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.http.logger.Warn().Err(err).Str("symbol", symbol).Msg("Ratios unavailable")
	} else if len(ratios) > 0 {
		r := ratios[0]
		out.Ratios = Ratios{
			PERatio:         r.PERatio,
			PriceToBook:     r.PriceToBook,
			PriceToSales:    r.PriceToSales,
			DebtToEquity:    r.DebtToEquity,
			ReturnOnEquity:  r.ReturnOnEquity,
			CurrentRatio:    r.CurrentRatio,
			DividendYield:   r.DividendYield,
			NetProfitMargin: r.NetProfitMargin,
		}
		out.Profile.PERatio = r.PERatio
		out.Profile.DividendYield = r.DividendYield
		out.Profile.ProfitMargin = r.NetProfitMargin
	}

	var metrics []fmpKeyMetricsTTM
	if err := f.get(ctx, "/key-metrics-ttm/"+url.PathEscape(symbol), nil, &metrics); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.http.logger.Warn().Err(err).Str("symbol", symbol).Msg("Key metrics unavailable")
	} else if len(metrics) > 0 {
		m := metrics[0]
		out.Metrics = KeyMetrics(m)
		out.Profile.BookValue = m.BookValuePerShare
	}

	return out, nil
}

type fmpRecommendation struct {
	Date       string `json:"date"`
	StrongBuy  int    `json:"analystRatingsStrongBuy"`
	Buy        int    `json:"analystRatingsbuy"`
	Hold       int    `json:"analystRatingsHold"`
	Sell       int    `json:"analystRatingsSell"`
	StrongSell int    `json:"analystRatingsStrongSell"`
}

// AnalystRatings fetches /analyst-stock-recommendations/{symbol}, newest first.
// An empty list is a valid answer.
func (f *FMP) AnalystRatings(ctx context.Context, symbol string) ([]AnalystRating, error) {
	var rows []fmpRecommendation
	if err := f.get(ctx, "/analyst-stock-recommendations/"+url.PathEscape(symbol), nil, &rows); err != nil {
		return nil, err
	}
	out := make([]AnalystRating, 0, len(rows))
	for _, r := range rows {
		out = append(out, AnalystRating(r))
	}
	return out, nil
}

type fmpHistorical struct {
	Symbol     string `json:"symbol"`
	Historical []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	} `json:"historical"`
}

// Historical fetches daily bars from /historical-price-full/{symbol}, newest first.
// limit <= 0 returns everything the provider sends.
func (f *FMP) Historical(ctx context.Context, symbol string, limit int) ([]Candle, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("timeseries", strconv.Itoa(limit))
	}
	var body fmpHistorical
	if err := f.get(ctx, "/historical-price-full/"+url.PathEscape(symbol), params, &body); err != nil {
		return nil, err
	}
	if len(body.Historical) == 0 {
		return nil, f.http.Empty("no history for " + symbol)
	}
	out := make([]Candle, 0, len(body.Historical))
	for _, h := range body.Historical {
		out = append(out, Candle{
			Time:   h.Date,
			Open:   h.Open,
			High:   h.High,
			Low:    h.Low,
			Close:  h.Close,
			Volume: int64(h.Volume),
		})
	}
	return out, nil
}
