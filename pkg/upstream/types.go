package upstream

import "time"

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	Open          *float64  `json:"open,omitempty"`
	DayHigh       *float64  `json:"day_high,omitempty"`
	DayLow        *float64  `json:"day_low,omitempty"`
	PreviousClose *float64  `json:"previous_close,omitempty"`
	MarketCap     *float64  `json:"market_cap,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle is one OHLCV bar. Time is the provider's date or datetime string.
type Candle struct {
	Time   string  `json:"timestamp"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// IndicatorPoint is one technical indicator value. Signal and Histogram are
// only set for MACD.
type IndicatorPoint struct {
	Date      string   `json:"date"`
	Close     *float64 `json:"close,omitempty"`
	Value     float64  `json:"value"`
	Signal    *float64 `json:"signal,omitempty"`
	Histogram *float64 `json:"histogram,omitempty"`
}

// CompanyOverview is descriptive and valuation data for a listed company.
type CompanyOverview struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Exchange      string   `json:"exchange,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Country       string   `json:"country,omitempty"`
	Sector        string   `json:"sector,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	Website       string   `json:"website,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"`
	PERatio       *float64 `json:"pe_ratio,omitempty"`
	EPS           *float64 `json:"eps,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`
	BookValue     *float64 `json:"book_value,omitempty"`
	ProfitMargin  *float64 `json:"profit_margin,omitempty"`
	Beta          *float64 `json:"beta,omitempty"`
	High52Week    *float64 `json:"week_52_high,omitempty"`
	Low52Week     *float64 `json:"week_52_low,omitempty"`
	Source        string   `json:"source"`
}

// Ratios are trailing-twelve-month valuation and quality ratios.
type Ratios struct {
	PERatio         *float64 `json:"pe_ratio,omitempty"`
	PriceToBook     *float64 `json:"price_to_book,omitempty"`
	PriceToSales    *float64 `json:"price_to_sales,omitempty"`
	DebtToEquity    *float64 `json:"debt_to_equity,omitempty"`
	ReturnOnEquity  *float64 `json:"return_on_equity,omitempty"`
	CurrentRatio    *float64 `json:"current_ratio,omitempty"`
	DividendYield   *float64 `json:"dividend_yield,omitempty"`
	NetProfitMargin *float64 `json:"net_profit_margin,omitempty"`
}

// KeyMetrics are per-share trailing-twelve-month metrics.
type KeyMetrics struct {
	RevenuePerShare      *float64 `json:"revenue_per_share,omitempty"`
	NetIncomePerShare    *float64 `json:"net_income_per_share,omitempty"`
	BookValuePerShare    *float64 `json:"book_value_per_share,omitempty"`
	FreeCashFlowPerShare *float64 `json:"free_cash_flow_per_share,omitempty"`
}

// Fundamentals combines a company profile with its ratios and key metrics.
type Fundamentals struct {
	Profile CompanyOverview `json:"profile"`
	Ratios  Ratios          `json:"ratios"`
	Metrics KeyMetrics      `json:"metrics"`
}

// AnalystRating is one dated snapshot of analyst recommendation counts.
type AnalystRating struct {
	Date       string `json:"date"`
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
}

// Consensus returns the dominant recommendation.
func (r AnalystRating) Consensus() string {
	bullish := r.StrongBuy + r.Buy
	bearish := r.StrongSell + r.Sell
	switch {
	case bullish == 0 && bearish == 0 && r.Hold == 0:
		return "none"
	case bullish > bearish && bullish > r.Hold:
		return "buy"
	case bearish > bullish && bearish > r.Hold:
		return "sell"
	default:
		return "hold"
	}
}

// NewsArticle is a normalised news item.
type NewsArticle struct {
	ID             string    `json:"id,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Content        string    `json:"content,omitempty"`
	URL            string    `json:"url"`
	ImageURL       string    `json:"urlToImage,omitempty"`
	Source         string    `json:"source"`
	Author         string    `json:"author,omitempty"`
	PublishedAt    time.Time `json:"publishedAt"`
	Topics         []string  `json:"topics,omitempty"`
	Symbols        []string  `json:"symbols,omitempty"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	SentimentLabel string    `json:"sentiment_label,omitempty"`
}

// IndexQuote is a market index level.
type IndexQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Source        string  `json:"source"`
}

// Breadth is the advance/decline count of an index's constituents.
type Breadth struct {
	Advances  int  `json:"advances"`
	Declines  int  `json:"declines"`
	Unchanged int  `json:"unchanged"`
	Estimated bool `json:"estimated"`
}

// Vector is an embedding with metadata, as stored in the vector index.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VectorMatch is one nearest-neighbour result.
type VectorMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the "text" metadata field, if any.
func (m VectorMatch) Text() string {
	if s, ok := m.Metadata["text"].(string); ok {
		return s
	}
	return ""
}

// ChatMessage is one turn of a conversation with the generative model.
type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"timestamp"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

func ptr[T any](v T) *T {
	return &v
}
