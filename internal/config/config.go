// Package config loads finpath-api settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends.
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
	BackendRedis     = "redis"
	BackendMemory    = "memory"
)

// Config holds every setting read from the environment.
type Config struct {
	Port               string
	LogLevel           string
	LogPretty          bool
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration

	CacheBackend       string
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration
	CacheTable         string
	SupabaseURL        string
	SupabaseAnonKey    string
	DatabaseURL        string
	RedisURL           string

	AlphaVantageAPIKey string
	FMPAPIKey          string
	NewsAPIKey         string
	GeminiAPIKey       string
	GeminiModel        string
	PineconeAPIKey     string
	PineconeIndexHost  string

	YahooMaxRequests int
	YahooWindow      time.Duration
	FetchMaxRetries  int
	FetchBaseDelay   time.Duration
	BatchSize        int
	BatchDelay       time.Duration
}

// LoadDotEnv loads the first .env files found. Missing files are ignored and
// variables already set in the environment win.
func LoadDotEnv() {
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// Load reads the configuration from the environment with defaults.
func Load() Config {
	return Config{
		Port:               getEnv("PORT", "8000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvBool("LOG_PRETTY", false),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		CacheBackend:       strings.ToLower(getEnv("CACHE_BACKEND", BackendPostgREST)),
		CacheTTL:           getEnvDuration("CACHE_TTL", time.Hour),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 15*time.Minute),
		CacheTable:         getEnv("CACHE_TABLE", "cache"),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),

		AlphaVantageAPIKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
		FMPAPIKey:          getEnv("FMP_API_KEY", ""),
		NewsAPIKey:         getEnv("NEWS_API_KEY", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		PineconeAPIKey:     getEnv("PINECONE_API_KEY", ""),
		PineconeIndexHost:  getEnv("PINECONE_INDEX_HOST", ""),

		YahooMaxRequests: getEnvInt("YAHOO_MAX_REQUESTS", 5),
		YahooWindow:      getEnvDuration("YAHOO_WINDOW", time.Minute),
		FetchMaxRetries:  getEnvInt("FETCH_MAX_RETRIES", 5),
		FetchBaseDelay:   getEnvDuration("FETCH_BASE_DELAY", 2*time.Second),
		BatchSize:        getEnvInt("BATCH_SIZE", 2),
		BatchDelay:       getEnvDuration("BATCH_DELAY", 2*time.Second),
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error

	switch c.CacheBackend {
	case BackendPostgREST:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=postgrest requires SUPABASE_URL and SUPABASE_ANON_KEY"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=postgres requires DATABASE_URL"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=redis requires REDIS_URL"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend))
	}

	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.FetchMaxRetries < 1 {
		errs = append(errs, errors.New("FETCH_MAX_RETRIES must be at least 1"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, errors.New("BATCH_SIZE must be at least 1"))
	}
	if c.YahooMaxRequests < 1 {
		errs = append(errs, errors.New("YAHOO_MAX_REQUESTS must be at least 1"))
	}
	if (c.PineconeAPIKey == "") != (c.PineconeIndexHost == "") {
		errs = append(errs, errors.New("PINECONE_API_KEY and PINECONE_INDEX_HOST must be set together"))
	}

	return errors.Join(errs...)
}

// Providers reports which upstream providers have credentials.
func (c Config) Providers() map[string]bool {
	return map[string]bool{
		"alpha_vantage": c.AlphaVantageAPIKey != "",
		"fmp":           c.FMPAPIKey != "",
		"newsapi":       c.NewsAPIKey != "",
		"gemini":        c.GeminiAPIKey != "",
		"pinecone":      c.PineconeAPIKey != "" && c.PineconeIndexHost != "",
		"yahoo":         true,
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvDuration accepts a Go duration ("90s", "15m") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
