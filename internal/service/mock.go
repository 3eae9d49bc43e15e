package service

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/upstream"
	"github.com/shopspring/decimal"
)

const (
	defaultSector = "Technology"
	niftySymbol   = "^NSEI"
	mockSource    = "mock"
)

type marketIndex struct {
	Symbol string
	Name   string
}

var indianIndices = []marketIndex{
	{Symbol: niftySymbol, Name: "NIFTY 50"},
	{Symbol: "^BSESN", Name: "SENSEX"},
	{Symbol: "^NSEBANK", Name: "NIFTY BANK"},
	{Symbol: "^CNXIT", Name: "NIFTY IT"},
	{Symbol: "^NSMIDCP", Name: "NIFTY NEXT 50"},
	{Symbol: "^INDIAVIX", Name: "INDIA VIX"},
}

var sectorPeerSymbols = map[string][]string{
	"Technology":         {"TCS.NS", "INFY.NS", "WIPRO.NS", "HCLTECH.NS", "TECHM.NS"},
	"Financial Services": {"HDFCBANK.NS", "ICICIBANK.NS", "SBIN.NS", "AXISBANK.NS", "KOTAKBANK.NS"},
	"Energy":             {"RELIANCE.NS", "ONGC.NS", "IOC.NS", "BPCL.NS", "GAIL.NS"},
	"Automobile":         {"TATAMOTORS.NS", "MARUTI.NS", "M&M.NS", "HEROMOTOCO.NS", "BAJAJ-AUTO.NS"},
	"Consumer Goods":     {"HINDUNILVR.NS", "ITC.NS", "NESTLEIND.NS", "DABUR.NS", "MARICO.NS"},
	"Pharmaceuticals":    {"SUNPHARMA.NS", "DRREDDY.NS", "CIPLA.NS", "DIVISLAB.NS", "BIOCON.NS"},
	"Metals":             {"TATASTEEL.NS", "HINDALCO.NS", "JSWSTEEL.NS", "VEDL.NS", "NMDC.NS"},
	"Telecommunications": {"BHARTIARTL.NS", "IDEA.NS", "TATACOMM.NS", "MTNL.NS", "RCOM.NS"},
}

var sectorCompanies = map[string][]string{
	"Technology":         {"TCS", "Infosys", "Wipro", "HCL Tech", "Tech Mahindra"},
	"Financial Services": {"HDFC Bank", "ICICI Bank", "SBI", "Axis Bank", "Kotak Bank"},
	"Energy":             {"Reliance", "ONGC", "IOC", "BPCL", "GAIL"},
	"Automobile":         {"Tata Motors", "Maruti Suzuki", "Mahindra", "Hero MotoCorp", "Bajaj Auto"},
	"Consumer Goods":     {"Hindustan Unilever", "ITC", "Nestle India", "Dabur", "Marico"},
	"Pharmaceuticals":    {"Sun Pharma", "Dr Reddy's", "Cipla", "Divi's Labs", "Biocon"},
	"Metals":             {"Tata Steel", "Hindalco", "JSW Steel", "Vedanta", "NMDC"},
	"Telecommunications": {"Bharti Airtel", "Vodafone Idea", "Tata Communications", "MTNL", "Reliance Communications"},
}

// sectorPeers returns the peer symbols for sector without symbol itself.
// Unknown sectors use the technology list.
func sectorPeers(sector, symbol string) []string {
	list, ok := sectorPeerSymbols[sector]
	if !ok {
		list = sectorPeerSymbols[defaultSector]
	}
	out := make([]string, 0, len(list))
	for _, p := range list {
		if !strings.EqualFold(p, symbol) {
			out = append(out, p)
		}
	}
	return out
}

// mockPeerQuotes generates plausible peer quotes. The values are derived from
// symbol and sector so repeated calls agree.
func mockPeerQuotes(symbol, sector string, limit int, now time.Time) []upstream.Quote {
	companies, ok := sectorCompanies[sector]
	if !ok {
		companies = sectorCompanies[defaultSector]
	}

	h := fnv.New64a()
	h.Write([]byte(symbol + "|" + sector))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	base := strings.ToUpper(strings.TrimSuffix(symbol, ".NS"))
	out := make([]upstream.Quote, 0, limit)
	for i := 0; i < len(companies) && len(out) < limit; i++ {
		ticker := strings.ToUpper(strings.NewReplacer(" ", "", "'", "").Replace(companies[i]))
		if ticker == base {
			continue
		}
		price := decimal.NewFromFloat(500 + rng.Float64()*4500).Round(2)
		pct := decimal.NewFromFloat(rng.Float64()*10 - 5).Round(2)
		change := price.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)

		p, _ := price.Float64()
		c, _ := change.Float64()
		cp, _ := pct.Float64()
		out = append(out, upstream.Quote{
			Symbol:        ticker + ".NS",
			Name:          companies[i],
			Price:         p,
			Change:        c,
			ChangePercent: cp,
			Volume:        100_000 + rng.Int63n(9_900_000),
			Currency:      "INR",
			Source:        mockSource,
			Timestamp:     now.UTC(),
		})
	}
	return out
}

var nifty50Gainers = []Mover{
	{Symbol: "HDFCBANK", Name: "HDFC Bank Ltd.", Price: 1678.45, Change: 45.60, ChangePercent: 2.79},
	{Symbol: "RELIANCE", Name: "Reliance Industries Ltd.", Price: 2987.30, Change: 67.80, ChangePercent: 2.32},
	{Symbol: "TCS", Name: "Tata Consultancy Services Ltd.", Price: 3876.25, Change: 78.45, ChangePercent: 2.07},
	{Symbol: "INFY", Name: "Infosys Ltd.", Price: 1543.20, Change: 28.75, ChangePercent: 1.90},
	{Symbol: "ICICIBANK", Name: "ICICI Bank Ltd.", Price: 987.65, Change: 18.30, ChangePercent: 1.89},
}

var nifty50Losers = []Mover{
	{Symbol: "SUNPHARMA", Name: "Sun Pharmaceutical Industries Ltd.", Price: 1234.50, Change: -34.20, ChangePercent: -2.70},
	{Symbol: "TATAMOTORS", Name: "Tata Motors Ltd.", Price: 876.30, Change: -23.45, ChangePercent: -2.61},
	{Symbol: "BAJAJFINSV", Name: "Bajaj Finserv Ltd.", Price: 1654.75, Change: -42.30, ChangePercent: -2.49},
	{Symbol: "ASIANPAINT", Name: "Asian Paints Ltd.", Price: 3210.45, Change: -76.80, ChangePercent: -2.34},
	{Symbol: "HCLTECH", Name: "HCL Technologies Ltd.", Price: 1432.60, Change: -32.15, ChangePercent: -2.19},
}

// placeholderOverview is served when no index level could be obtained.
func placeholderOverview(now time.Time) *MarketOverview {
	return &MarketOverview{
		Indices: []upstream.IndexQuote{
			{Symbol: niftySymbol, Name: "NIFTY 50", Value: 22345.60, Change: 123.45, ChangePercent: 0.55, Source: mockSource},
			{Symbol: "^NSEBANK", Name: "NIFTY BANK", Value: 48765.30, Change: -156.70, ChangePercent: -0.32, Source: mockSource},
			{Symbol: "^CNXIT", Name: "NIFTY IT", Value: 37890.25, Change: 345.60, ChangePercent: 0.92, Source: mockSource},
			{Symbol: "^NSMIDCP", Name: "NIFTY NEXT 50", Value: 54321.10, Change: 234.50, ChangePercent: 0.43, Source: mockSource},
			{Symbol: "^INDIAVIX", Name: "INDIA VIX", Value: 14.25, Change: -0.75, ChangePercent: -5.00, Source: mockSource},
		},
		Breadth:   upstream.Breadth{Advances: 1234, Declines: 876, Unchanged: 123},
		Timestamp: now.UTC(),
		Degraded:  true,
	}
}

type mockArticle struct {
	title, slug, summary, source string
}

var marketNews = []mockArticle{
	{"Market Update: Major Indices Show Mixed Results", "market-update", "Major indices showed mixed results today as investors weighed economic data.", "Financial Times"},
	{"RBI Announces New Monetary Policy Measures", "rbi-policy", "The Reserve Bank of India announced new monetary policy measures aimed at controlling inflation.", "Economic Times"},
	{"Tech Stocks Rally on Strong Earnings Reports", "tech-rally", "Technology stocks rallied today following better-than-expected earnings reports from major companies.", "Bloomberg"},
	{"Oil Prices Surge Amid Supply Concerns", "oil-prices", "Oil prices surged today amid concerns about global supply disruptions.", "Reuters"},
	{"Global Markets React to US Federal Reserve Decision", "fed-decision", "Global markets reacted strongly to the latest US Federal Reserve interest rate decision.", "CNBC"},
}

var companyNews = map[string][]mockArticle{
	"RELIANCE.NS": {
		{"Reliance Industries Announces New Green Energy Initiative", "reliance-green", "Reliance Industries has announced a major new green energy initiative with significant investments.", "Economic Times"},
		{"Reliance Retail Expands E-commerce Operations", "reliance-retail", "Reliance Retail is expanding its e-commerce operations to compete with established players.", "Business Standard"},
	},
	"TCS.NS": {
		{"TCS Reports Strong Quarterly Results", "tcs-results", "Tata Consultancy Services has reported strong quarterly results, exceeding analyst expectations.", "Mint"},
		{"TCS Announces New AI Partnership", "tcs-ai", "TCS has announced a new partnership to enhance its artificial intelligence capabilities.", "Business Today"},
	},
	"HDFCBANK.NS": {
		{"HDFC Bank Launches New Digital Banking Platform", "hdfc-digital", "HDFC Bank has launched a new digital banking platform with enhanced features for customers.", "Financial Express"},
		{"HDFC Bank Reports Record Profit Growth", "hdfc-profit", "HDFC Bank has reported record profit growth in its latest quarterly results.", "Economic Times"},
	},
}

// mockNews returns up to limit placeholder articles. Articles for a known
// company symbol come first.
func mockNews(limit int, symbol string, now time.Time) []upstream.NewsArticle {
	items := make([]mockArticle, 0, len(marketNews)+2)
	if extra, ok := companyNews[strings.ToUpper(symbol)]; ok {
		items = append(items, extra...)
	}
	items = append(items, marketNews...)
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	out := make([]upstream.NewsArticle, 0, len(items))
	for _, it := range items {
		out = append(out, upstream.NewsArticle{
			Title:       it.title,
			Description: it.summary,
			URL:         "https://example.com/" + it.slug,
			ImageURL:    "https://placehold.co/600x400/png?text=" + strings.ReplaceAll(it.title, " ", "+"),
			Source:      it.source,
			PublishedAt: now.UTC(),
		})
	}
	return out
}
