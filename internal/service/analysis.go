package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/finpath-api/pkg/cache"
	"github.com/Sternrassler/finpath-api/pkg/fetch"
	"github.com/Sternrassler/finpath-api/pkg/logging"
	"github.com/Sternrassler/finpath-api/pkg/upstream"
	"golang.org/x/sync/errgroup"
)

const (
	analysisUnavailable = "AI analysis is currently unavailable. The figures above are current as of the timestamp."
	analystSystemPrompt = `You are a senior equity research analyst covering Indian and global equities. ` +
		`Write a concise, neutral and objective analysis of the stock described below. ` +
		`Cover the technical picture, the fundamental valuation, the impact of recent news, ` +
		`key risks, and finish with an overall sentiment (bullish, bearish or neutral). ` +
		`Rely only on the data provided and say when data is missing.`
)

// Technical returns RSI and MACD series from FMP. When FMP is unavailable the
// indicators are computed from Yahoo daily bars.
func (s *Service) Technical(ctx context.Context, symbol string, period int) (*TechnicalAnalysis, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if period <= 1 || period > 200 {
		period = 14
	}

	var sources []fetch.Source[*TechnicalAnalysis]
	if s.fmp != nil && s.fmp.Configured() {
		sources = append(sources, fetch.Source[*TechnicalAnalysis]{
			Name: s.fmp.Name(),
			Fetch: func(ctx context.Context) (*TechnicalAnalysis, error) {
				return s.fmpTechnical(ctx, symbol, period)
			},
		})
	}
	if s.yahoo != nil {
		sources = append(sources, yahooSource(s, func(ctx context.Context) (*TechnicalAnalysis, error) {
			bars, err := s.yahoo.Daily(ctx, symbol, "1y")
			if err != nil {
				return nil, err
			}
			rsiPts, macdPts, smaPts := indicatorsFromBars(bars, period)
			if len(rsiPts) == 0 {
				return nil, fmt.Errorf("%d bars for period %d: %w", len(bars), period, upstream.ErrEmptyPayload)
			}
			return &TechnicalAnalysis{RSI: rsiPts, MACD: macdPts, SMA: smaPts, Source: "computed"}, nil
		}))
	}

	key := cache.Key("technical", symbol, url.Values{"period": {strconv.Itoa(period)}})
	ta, err := cached(ctx, s, key, TTLTechnical, func(ctx context.Context) (*TechnicalAnalysis, error) {
		ta, err := fetch.Chain(ctx, sources...)
		if err != nil {
			return nil, err
		}
		ta.Symbol = symbol
		ta.Period = period
		ta.Timestamp = s.now().UTC()
		return ta, nil
	})
	return ta, unavailable("technical "+symbol, err)
}

func (s *Service) fmpTechnical(ctx context.Context, symbol string, period int) (*TechnicalAnalysis, error) {
	var rsiPts, macdPts []upstream.IndicatorPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rsiPts, err = s.fmp.TechnicalIndicator(gctx, symbol, "rsi", period)
		return err
	})
	g.Go(func() error {
		var err error
		macdPts, err = s.fmp.TechnicalIndicator(gctx, symbol, "macd", 26)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &TechnicalAnalysis{RSI: rsiPts, MACD: macdPts, Source: s.fmp.Name()}, nil
}

// Fundamentals returns FMP fundamentals with analyst ratings. Without FMP the
// Alpha Vantage overview stands in for the profile and ratings are empty.
func (s *Service) Fundamentals(ctx context.Context, symbol string) (*FundamentalAnalysis, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var sources []fetch.Source[*FundamentalAnalysis]
	if s.fmp != nil && s.fmp.Configured() {
		sources = append(sources, fetch.Source[*FundamentalAnalysis]{
			Name: s.fmp.Name(),
			Fetch: func(ctx context.Context) (*FundamentalAnalysis, error) {
				f, err := s.fmp.Fundamentals(ctx, symbol)
				if err != nil {
					return nil, err
				}
				out := &FundamentalAnalysis{Fundamentals: *f, Source: s.fmp.Name()}
				ratings, err := s.fmp.AnalystRatings(ctx, symbol)
				if err != nil && ctx.Err() == nil {
					logging.FromContext(ctx).Warn().Err(err).Str("component", "service").Str("symbol", symbol).Msg("Analyst ratings unavailable")
				}
				out.Ratings = ratings
				return out, nil
			},
		})
	}
	if s.av != nil && s.av.Configured() {
		sources = append(sources, fetch.Source[*FundamentalAnalysis]{
			Name: s.av.Name(),
			Fetch: func(ctx context.Context) (*FundamentalAnalysis, error) {
				o, err := s.av.Overview(ctx, symbol)
				if err != nil {
					return nil, err
				}
				return &FundamentalAnalysis{
					Fundamentals: upstream.Fundamentals{
						Profile: *o,
						Ratios:  upstream.Ratios{PERatio: o.PERatio, DividendYield: o.DividendYield, NetProfitMargin: o.ProfitMargin},
					},
					Source: s.av.Name(),
				}, nil
			},
		})
	}

	key := cache.Key("fundamentals", symbol, nil)
	fa, err := cached(ctx, s, key, TTLFundamentals, func(ctx context.Context) (*FundamentalAnalysis, error) {
		fa, err := fetch.Chain(ctx, sources...)
		if err != nil {
			return nil, err
		}
		fa.Symbol = symbol
		if fa.Ratings == nil {
			fa.Ratings = []upstream.AnalystRating{}
		}
		fa.Consensus = "none"
		if len(fa.Ratings) > 0 {
			fa.Consensus = fa.Ratings[0].Consensus()
		}
		fa.Timestamp = s.now().UTC()
		return fa, nil
	})
	return fa, unavailable("fundamentals "+symbol, err)
}

// StockAnalysis combines the quote with the selected sections and asks the
// language model for commentary. Only the quote is required; other sections
// are omitted when their providers fail, and the commentary is replaced by a
// notice when the model is unavailable.
func (s *Service) StockAnalysis(ctx context.Context, symbol string, opts AnalysisOptions) (*StockAnalysis, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	key := cache.Key("analysis", symbol, url.Values{
		"fundamentals": {strconv.FormatBool(opts.Fundamentals)},
		"news":         {strconv.FormatBool(opts.News)},
		"technicals":   {strconv.FormatBool(opts.Technicals)},
	})
	a, err := cached(ctx, s, key, TTLAnalysis, func(ctx context.Context) (*StockAnalysis, error) {
		return s.buildAnalysis(ctx, symbol, opts)
	})
	return a, unavailable("analysis "+symbol, err)
}

func (s *Service) buildAnalysis(ctx context.Context, symbol string, opts AnalysisOptions) (*StockAnalysis, error) {
	log := logging.FromContext(ctx)

	q, err := s.Stock(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := &StockAnalysis{
		Symbol:        symbol,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Timestamp:     s.now().UTC(),
	}

	if opts.Technicals {
		if ta, err := s.Technical(ctx, symbol, 14); err == nil {
			out.Technical = snapshot(ta)
		} else {
			log.Warn().Err(err).Str("component", "service").Str("symbol", symbol).Msg("Technicals omitted from analysis")
		}
	}
	if opts.Fundamentals {
		if fa, err := s.Fundamentals(ctx, symbol); err == nil {
			out.Fundamentals = &fa.Fundamentals
			out.Ratings = fa.Ratings
		} else {
			log.Warn().Err(err).Str("component", "service").Str("symbol", symbol).Msg("Fundamentals omitted from analysis")
		}
	}
	if opts.News {
		if n, err := s.CompanyNews(ctx, symbol, 5); err == nil && n.Source != mockSource {
			out.News = n.News
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Analysis, out.AnalysisSource = analysisUnavailable, "unavailable"
	if s.llm != nil && s.llm.Configured() {
		text, err := s.llm.GenerateText(ctx, analysisPrompt(out, q), analystSystemPrompt, nil)
		if err == nil && strings.TrimSpace(text) != "" {
			out.Analysis, out.AnalysisSource = text, "gemini"
		} else if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("component", "service").Str("symbol", symbol).Msg("AI commentary unavailable")
		}
	}
	out.Sentiment = scoreSentiment(out)
	return out, nil
}

func snapshot(ta *TechnicalAnalysis) *TechnicalSnapshot {
	snap := &TechnicalSnapshot{}
	if len(ta.RSI) > 0 {
		v := ta.RSI[0].Value
		snap.RSI = &v
	}
	if len(ta.MACD) > 0 {
		v := ta.MACD[0].Value
		snap.MACD = &v
		snap.Signal = ta.MACD[0].Signal
	}
	if len(ta.SMA) > 0 {
		v := ta.SMA[0].Value
		snap.SMA = &v
	}
	return snap
}

// analysisPrompt renders the collected data in the layout the analyst prompt
// expects, using Indian number formatting.
func analysisPrompt(a *StockAnalysis, q *upstream.Quote) string {
	var b strings.Builder

	name := a.Symbol
	sector, industry := "N/A", "N/A"
	var marketCap float64
	if a.Fundamentals != nil {
		p := a.Fundamentals.Profile
		if p.Name != "" {
			name = p.Name
		}
		if p.Sector != "" {
			sector = p.Sector
		}
		if p.Industry != "" {
			industry = p.Industry
		}
		if p.MarketCap != nil {
			marketCap = *p.MarketCap
		}
	}
	if marketCap == 0 && q.MarketCap != nil {
		marketCap = *q.MarketCap
	}

	fmt.Fprintf(&b, "==== COMPANY OVERVIEW ====\nName: %s\nTicker: %s\nSector: %s\nIndustry: %s\n\n", name, a.Symbol, sector, industry)
	fmt.Fprintf(&b, "==== MARKET DATA ====\nCurrent Price: %s\nDay Change: %s\nVolume: %s\nMarket Cap: %s\n",
		FormatRupees(a.Price), FormatPercent(a.ChangePercent), FormatVolume(q.Volume), rupeeCrores(marketCap))

	if t := a.Technical; t != nil {
		fmt.Fprintf(&b, "\n==== TECHNICAL INDICATORS ====\nRSI(14): %s\nMACD: %s\nMACD Signal: %s\n",
			formatOpt(t.RSI, ""), formatOpt(t.MACD, ""), formatOpt(t.Signal, ""))
	}

	if f := a.Fundamentals; f != nil {
		fmt.Fprintf(&b, "\n==== FINANCIAL RATIOS ====\nP/E Ratio: %s\nPrice/Book: %s\nROE: %s\nDebt-to-Equity: %s\nDividend Yield: %s\n",
			formatOpt(f.Ratios.PERatio, ""), formatOpt(f.Ratios.PriceToBook, ""), formatOpt(f.Ratios.ReturnOnEquity, ""),
			formatOpt(f.Ratios.DebtToEquity, ""), formatOpt(f.Ratios.DividendYield, ""))
	}
	if len(a.Ratings) > 0 {
		r := a.Ratings[0]
		fmt.Fprintf(&b, "\n==== ANALYST RATINGS (%s) ====\nStrong Buy: %d, Buy: %d, Hold: %d, Sell: %d, Strong Sell: %d\nConsensus: %s\n",
			r.Date, r.StrongBuy, r.Buy, r.Hold, r.Sell, r.StrongSell, r.Consensus())
	}

	if len(a.News) > 0 {
		b.WriteString("\n==== RECENT NEWS ====\n")
		for i, n := range a.News {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- %s (%s)\n  %s\n", n.Title, n.PublishedAt.Format("2006-01-02"), n.Description)
		}
	}
	return b.String()
}

func rupeeCrores(v float64) string {
	s := FormatCrores(v)
	if s == "N/A" {
		return s
	}
	return "₹" + s
}

// scoreSentiment derives scores from the indicators, the analyst consensus,
// news sentiment and keywords in the commentary. Missing inputs stay neutral.
func scoreSentiment(a *StockAnalysis) Sentiment {
	s := Sentiment{Technical: 0.5, Fundamental: 0.5, News: 0.5, Overall: 0.5}

	if t := a.Technical; t != nil && t.MACD != nil && t.Signal != nil {
		switch {
		case *t.MACD > *t.Signal:
			s.Technical = 0.8
		case *t.MACD < *t.Signal:
			s.Technical = -0.8
		}
	}

	if len(a.Ratings) > 0 {
		switch a.Ratings[0].Consensus() {
		case "buy":
			s.Fundamental = 0.7
		case "sell":
			s.Fundamental = -0.7
		}
	}

	var sum float64
	var n int
	for _, art := range a.News {
		if art.SentimentScore != nil {
			sum += *art.SentimentScore
			n++
		}
	}
	if n > 0 {
		s.News = round2(sum / float64(n))
	}

	if a.AnalysisSource == "gemini" {
		text := strings.ToLower(a.Analysis)
		bull := strings.Count(text, "bullish") + strings.Count(text, "positive")
		bear := strings.Count(text, "bearish") + strings.Count(text, "negative")
		switch {
		case bull > bear:
			s.Overall = 0.7
		case bear > bull:
			s.Overall = -0.7
		}
	}
	return s
}
