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
)

var intradayIntervals = map[string]bool{
	"1min": true, "5min": true, "15min": true, "30min": true, "60min": true,
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || len(symbol) > 32 {
		return "", fmt.Errorf("%w: symbol %q", ErrInvalidInput, symbol)
	}
	return symbol, nil
}

func quoteUsable(q *upstream.Quote) bool {
	return q != nil && q.Price > 0
}

// Stock returns the latest quote for symbol from FMP, falling back to Yahoo.
func (s *Service) Stock(ctx context.Context, symbol string) (*upstream.Quote, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	key := cache.Key("stock", symbol, nil)
	q, err := cached(ctx, s, key, TTLStock, func(ctx context.Context) (*upstream.Quote, error) {
		return fetch.Chain(ctx, s.quoteSources(symbol)...)
	})
	return q, unavailable("stock "+symbol, err)
}

func (s *Service) quoteSources(symbol string) []fetch.Source[*upstream.Quote] {
	var sources []fetch.Source[*upstream.Quote]
	if s.fmp != nil && s.fmp.Configured() {
		sources = append(sources, fetch.Source[*upstream.Quote]{
			Name:   s.fmp.Name(),
			Fetch:  func(ctx context.Context) (*upstream.Quote, error) { return s.fmp.Quote(ctx, symbol) },
			Usable: quoteUsable,
		})
	}
	if s.yahoo != nil {
		src := yahooSource(s, func(ctx context.Context) (*upstream.Quote, error) { return s.yahoo.Quote(ctx, symbol) })
		src.Usable = quoteUsable
		sources = append(sources, src)
	}
	if s.av != nil && s.av.Configured() {
		sources = append(sources, fetch.Source[*upstream.Quote]{
			Name:   s.av.Name(),
			Fetch:  func(ctx context.Context) (*upstream.Quote, error) { return s.av.Quote(ctx, symbol) },
			Usable: quoteUsable,
		})
	}
	return sources
}

// Intraday returns intraday bars from Alpha Vantage.
func (s *Service) Intraday(ctx context.Context, symbol, interval string) (*TimeSeries, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if interval == "" {
		interval = "5min"
	}
	if !intradayIntervals[interval] {
		return nil, fmt.Errorf("%w: interval %q", ErrInvalidInput, interval)
	}

	key := cache.Key("intraday", symbol, url.Values{"interval": {interval}})
	ts, err := cached(ctx, s, key, TTLIntraday, func(ctx context.Context) (*TimeSeries, error) {
		if s.av == nil {
			return nil, upstream.ErrNotConfigured
		}
		bars, err := s.av.Intraday(ctx, symbol, interval)
		if err != nil {
			return nil, err
		}
		return &TimeSeries{Symbol: symbol, Interval: interval, Data: bars, Source: s.av.Name()}, nil
	})
	return ts, unavailable("intraday "+symbol, err)
}

// Daily returns daily bars from Alpha Vantage, then FMP, then Yahoo.
// outputsize is "compact" (about 100 bars) or "full".
func (s *Service) Daily(ctx context.Context, symbol, outputsize string) (*TimeSeries, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	switch outputsize {
	case "":
		outputsize = "compact"
	case "compact", "full":
	default:
		return nil, fmt.Errorf("%w: outputsize %q", ErrInvalidInput, outputsize)
	}

	limit, rng := 100, "6mo"
	if outputsize == "full" {
		limit, rng = 0, "max"
	}

	var sources []fetch.Source[[]upstream.Candle]
	if s.av != nil && s.av.Configured() {
		sources = append(sources, fetch.Source[[]upstream.Candle]{
			Name:  s.av.Name(),
			Fetch: func(ctx context.Context) ([]upstream.Candle, error) { return s.av.Daily(ctx, symbol, outputsize) },
		})
	}
	if s.fmp != nil && s.fmp.Configured() {
		sources = append(sources, fetch.Source[[]upstream.Candle]{
			Name:  s.fmp.Name(),
			Fetch: func(ctx context.Context) ([]upstream.Candle, error) { return s.fmp.Historical(ctx, symbol, limit) },
		})
	}
	if s.yahoo != nil {
		sources = append(sources, yahooSource(s, func(ctx context.Context) ([]upstream.Candle, error) {
			return s.yahoo.Daily(ctx, symbol, rng)
		}))
	}

	key := cache.Key("daily", symbol, url.Values{"outputsize": {outputsize}})
	ts, err := cached(ctx, s, key, TTLDaily, func(ctx context.Context) (*TimeSeries, error) {
		res := fetch.ChainResult(ctx, sources...)
		if !res.Ok() {
			return nil, res.Err
		}
		return &TimeSeries{Symbol: symbol, Interval: "daily", Data: res.Value, Source: res.Source}, nil
	})
	return ts, unavailable("daily "+symbol, err)
}

// Overview returns the company overview from Alpha Vantage, falling back to
// the FMP profile.
func (s *Service) Overview(ctx context.Context, symbol string) (*upstream.CompanyOverview, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	usable := func(o *upstream.CompanyOverview) bool { return o != nil && o.Name != "" }
	var sources []fetch.Source[*upstream.CompanyOverview]
	if s.av != nil && s.av.Configured() {
		sources = append(sources, fetch.Source[*upstream.CompanyOverview]{
			Name:   s.av.Name(),
			Fetch:  func(ctx context.Context) (*upstream.CompanyOverview, error) { return s.av.Overview(ctx, symbol) },
			Usable: usable,
		})
	}
	if s.fmp != nil && s.fmp.Configured() {
		sources = append(sources, fetch.Source[*upstream.CompanyOverview]{
			Name:   s.fmp.Name(),
			Fetch:  func(ctx context.Context) (*upstream.CompanyOverview, error) { return s.fmp.Profile(ctx, symbol) },
			Usable: usable,
		})
	}

	key := cache.Key("overview", symbol, nil)
	o, err := cached(ctx, s, key, TTLOverview, func(ctx context.Context) (*upstream.CompanyOverview, error) {
		return fetch.Chain(ctx, sources...)
	})
	return o, unavailable("overview "+symbol, err)
}

// Peers returns quotes for up to limit companies in symbol's sector. Peer
// quotes are fetched in batches; when none can be fetched, generated quotes
// are returned with Mock set.
func (s *Service) Peers(ctx context.Context, symbol string, limit int) (*Peers, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 10 {
		limit = 5
	}
	log := logging.FromContext(ctx)

	sector := defaultSector
	if o, err := s.Overview(ctx, symbol); err == nil && o.Sector != "" {
		sector = o.Sector
	} else if err != nil {
		log.Warn().Err(err).Str("component", "service").Str("symbol", symbol).Msg("No overview for peers, using default sector")
	}

	candidates := sectorPeers(sector, symbol)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	quotes, err := fetch.Batch(ctx, candidates, func(ctx context.Context, peer string) (*upstream.Quote, error) {
		q, err := s.Stock(ctx, peer)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("component", "service").Str("peer", peer).Msg("Peer quote failed")
			return nil, nil
		}
		return q, nil
	}, s.batch)
	if err != nil {
		return nil, err
	}

	out := &Peers{Symbol: symbol, Sector: sector}
	for _, q := range quotes {
		if q != nil {
			out.Peers = append(out.Peers, *q)
		}
	}
	if len(out.Peers) == 0 {
		out.Peers = mockPeerQuotes(symbol, sector, limit, s.now())
		out.Mock = true
	}
	return out, nil
}

// IndianOverview returns the main Indian indices and an estimated market
// breadth. Indices are fetched in batches, each from FMP with a Yahoo
// fallback. When no index can be fetched the last good overview, or a static
// placeholder, is returned with Degraded set.
func (s *Service) IndianOverview(ctx context.Context) (*MarketOverview, error) {
	key := cache.CacheKey{Endpoint: "market_overview", PathParams: map[string]string{"market": "india"}}.String()

	ov, err := cached(ctx, s, key, TTLMarket, func(ctx context.Context) (*MarketOverview, error) {
		quotes, err := fetch.Batch(ctx, indianIndices, s.fetchIndex, s.batch)
		if err != nil {
			return nil, err
		}

		out := &MarketOverview{Timestamp: s.now().UTC()}
		for _, q := range quotes {
			if q != nil {
				out.Indices = append(out.Indices, *q)
			}
		}
		if len(out.Indices) == 0 {
			return nil, fmt.Errorf("indian market overview: %w", upstream.ErrEmptyPayload)
		}
		out.Breadth = estimateBreadth(out.Indices)
		return out, nil
	})
	if err == nil {
		return ov, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logging.FromContext(ctx).Warn().Err(err).Str("component", "service").Msg("Serving placeholder market overview")
	return placeholderOverview(s.now()), nil
}

// fetchIndex never fails for provider errors so that one missing index does
// not abort the batch.
func (s *Service) fetchIndex(ctx context.Context, idx marketIndex) (*upstream.IndexQuote, error) {
	var sources []fetch.Source[*upstream.IndexQuote]
	if s.fmp != nil && s.fmp.Configured() {
		sources = append(sources, fetch.Source[*upstream.IndexQuote]{
			Name: s.fmp.Name(),
			Fetch: func(ctx context.Context) (*upstream.IndexQuote, error) {
				return s.fmp.IndexQuote(ctx, idx.Symbol, idx.Name)
			},
		})
	}
	if s.yahoo != nil {
		sources = append(sources, yahooSource(s, func(ctx context.Context) (*upstream.IndexQuote, error) {
			return s.yahoo.IndexQuote(ctx, idx.Symbol, idx.Name)
		}))
	}

	q, err := fetch.Chain(ctx, sources...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.FromContext(ctx).Warn().
			Err(err).
			Str("component", "service").
			Str("index", idx.Name).
			Msg("Index quote unavailable")
		return nil, nil
	}
	return q, nil
}

// estimateBreadth derives advance/decline counts for the NIFTY 50 from the
// index's own move. Without a NIFTY 50 quote a fixed split is returned.
func estimateBreadth(indices []upstream.IndexQuote) upstream.Breadth {
	for _, q := range indices {
		if q.Symbol != niftySymbol {
			continue
		}
		pct := q.ChangePercent
		switch {
		case pct > 1:
			return upstream.Breadth{Advances: 40, Declines: 8, Unchanged: 2, Estimated: true}
		case pct > 0.25:
			return upstream.Breadth{Advances: 32, Declines: 16, Unchanged: 2, Estimated: true}
		case pct >= -0.25:
			return upstream.Breadth{Advances: 25, Declines: 23, Unchanged: 2, Estimated: true}
		case pct >= -1:
			return upstream.Breadth{Advances: 16, Declines: 32, Unchanged: 2, Estimated: true}
		default:
			return upstream.Breadth{Advances: 8, Declines: 40, Unchanged: 2, Estimated: true}
		}
	}
	return upstream.Breadth{Advances: 26, Declines: 22, Unchanged: 2, Estimated: true}
}

// IndexMovers returns the top n gainers and losers of index. Only NIFTY 50 has
// movers; other indices return empty lists.
func (s *Service) IndexMovers(index string, n int) IndexMovers {
	if n <= 0 {
		n = 5
	}
	norm := strings.ToUpper(strings.ReplaceAll(index, " ", ""))
	if norm != "NIFTY50" {
		return IndexMovers{IndexName: index, Gainers: []Mover{}, Losers: []Mover{}}
	}
	return IndexMovers{
		IndexName: "NIFTY 50",
		Gainers:   firstN(nifty50Gainers, n),
		Losers:    firstN(nifty50Losers, n),
	}
}

func firstN[T any](s []T, n int) []T {
	if n > len(s) {
		n = len(s)
	}
	out := make([]T, n)
	copy(out, s[:n])
	return out
}

// ParseLimit parses a positive integer query value, returning def when it is
// empty or invalid.
func ParseLimit(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
