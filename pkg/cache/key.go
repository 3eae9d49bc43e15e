package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keySeparator joins the key segments. Upstream symbols contain dots and
// carets, so the separator must not be one of those.
const keySeparator = "_"

// valueEscaper keeps parameter values from producing a separator, so
// distinct request shapes never share a key.
var valueEscaper = strings.NewReplacer("%", "%25", keySeparator, "%5F", ",", "%2C")

// CacheKey identifies one logical request whose response is cached.
type CacheKey struct {
	// Endpoint is the logical endpoint name (e.g., "stock", "analysis")
	Endpoint string

	// PathParams are the path parameters (e.g., {"symbol": "RELIANCE.NS"})
	PathParams map[string]string

	// QueryParams are the query parameters that change the response
	// (e.g., {"interval": "5min"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: endpoint_pathval1_pathval2_query1=val1_query2=val2
//
// Path parameter values are ordered by parameter name, query parameters by key.
// "%", "_" and "," inside values are percent-escaped.
//
// Example:
//
//	stock_RELIANCE.NS
//	intraday_RELIANCE.NS_interval=5min
func (k CacheKey) String() string {
	parts := make([]string, 0, 1+len(k.PathParams)+len(k.QueryParams))

	endpoint := strings.Trim(k.Endpoint, "/ ")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.PathParams) > 0 {
		names := make([]string, 0, len(k.PathParams))
		for name := range k.PathParams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, valueEscaper.Replace(k.PathParams[name]))
		}
	}

	if len(k.QueryParams) > 0 {
		names := make([]string, 0, len(k.QueryParams))
		for name := range k.QueryParams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := make([]string, len(k.QueryParams[name]))
			for i, v := range k.QueryParams[name] {
				values[i] = valueEscaper.Replace(v)
			}
			parts = append(parts, name+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, keySeparator)
}

// Key is shorthand for a CacheKey with a single "symbol" path parameter,
// the shape used by most market data endpoints.
func Key(endpoint, symbol string, query url.Values) string {
	k := CacheKey{Endpoint: endpoint, QueryParams: query}
	if symbol != "" {
		k.PathParams = map[string]string{"symbol": symbol}
	}
	return k.String()
}
