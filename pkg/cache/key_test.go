package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "endpoint only",
			key:  CacheKey{Endpoint: "market_status"},
			want: "market_status",
		},
		{
			name: "endpoint with symbol",
			key: CacheKey{
				Endpoint:   "stock",
				PathParams: map[string]string{"symbol": "RELIANCE.NS"},
			},
			want: "stock_RELIANCE.NS",
		},
		{
			name: "path params sorted by name",
			key: CacheKey{
				Endpoint:   "indicator",
				PathParams: map[string]string{"symbol": "TCS.NS", "indicator": "rsi"},
			},
			want: "indicator_rsi_TCS.NS",
		},
		{
			name: "query params sorted",
			key: CacheKey{
				Endpoint:   "analysis",
				PathParams: map[string]string{"symbol": "INFY.NS"},
				QueryParams: url.Values{
					"include_news":         {"true"},
					"include_fundamentals": {"false"},
				},
			},
			want: "analysis_INFY.NS_include_fundamentals=false_include_news=true",
		},
		{
			name: "multi-valued query param",
			key: CacheKey{
				Endpoint:    "news",
				QueryParams: url.Values{"topics": {"earnings", "ipo"}},
			},
			want: "news_topics=earnings,ipo",
		},
		{
			name: "endpoint slashes trimmed",
			key:  CacheKey{Endpoint: "/overview/"},
			want: "overview",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{
		Endpoint:    "intraday",
		PathParams:  map[string]string{"symbol": "SBIN.NS", "exchange": "NSE"},
		QueryParams: url.Values{"interval": {"5min"}, "outputsize": {"compact"}},
	}

	first := key.String()
	for i := 0; i < 50; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Key("stock", "RELIANCE.NS", nil); got != "stock_RELIANCE.NS" {
		t.Errorf("Key() = %q, want %q", got, "stock_RELIANCE.NS")
	}
	if got := Key("daily", "TCS.NS", url.Values{"outputsize": {"full"}}); got != "daily_TCS.NS_outputsize=full" {
		t.Errorf("Key() = %q, want %q", got, "daily_TCS.NS_outputsize=full")
	}
	if got := Key("indian_market_overview", "", nil); got != "indian_market_overview" {
		t.Errorf("Key() = %q, want %q", got, "indian_market_overview")
	}
}

func TestCacheKey_StringEscapesValues(t *testing.T) {
	single := Key("stock", "A_B", nil)
	pair := CacheKey{Endpoint: "stock", PathParams: map[string]string{"a": "A", "b": "B"}}.String()
	if single == pair {
		t.Errorf("Key(stock, A_B) = %q collides with two path values", single)
	}
	if single != "stock_A%5FB" {
		t.Errorf("Key() = %q, want %q", single, "stock_A%5FB")
	}

	joined := Key("news", "", url.Values{"q": {"a,b"}})
	split := Key("news", "", url.Values{"q": {"a", "b"}})
	if joined == split {
		t.Errorf("query value %q collides with two values", joined)
	}

	escaped := Key("stock", "A%5FB", nil)
	if escaped == single {
		t.Errorf("literal %%5F = %q collides with escaped underscore", escaped)
	}
}
