// Command finpath-api serves the FinPath market data, news, analysis and
// FinGenie chat API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/finpath-api/internal/config"
	"github.com/Sternrassler/finpath-api/internal/server"
	"github.com/Sternrassler/finpath-api/internal/service"
	"github.com/Sternrassler/finpath-api/pkg/cache"
	"github.com/Sternrassler/finpath-api/pkg/fetch"
	"github.com/Sternrassler/finpath-api/pkg/logging"
	"github.com/Sternrassler/finpath-api/pkg/ratelimit"
	"github.com/Sternrassler/finpath-api/pkg/upstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logger := logging.Setup(logCfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { closeStore() }()

	if err := prepareStore(ctx, store); err != nil {
		logger.Warn().
			Err(err).
			Str("backend", cfg.CacheBackend).
			Msg("Cache store not usable at startup, falling back to in-memory cache")
		closeStore()
		store, closeStore = cache.NewMemoryStore(), func() {}
	}

	cacheManager := cache.NewManager(store, cache.WithTTL(cfg.CacheTTL))

	svc := newService(cfg, cacheManager, logger)

	swept := cacheManager.SweepExpired(ctx)
	logger.Info().Int("deleted", swept).Msg("Startup cache sweep complete")
	cacheManager.StartSweeper(ctx, cfg.CacheSweepInterval)

	srv := server.New(svc,
		server.WithRequestTimeout(cfg.RequestTimeout),
		server.WithCORSOrigins(cfg.CORSAllowedOrigins),
		server.WithLogger(logging.NewLogger("server")),
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("cache_backend", cfg.CacheBackend).
			Interface("providers", cfg.Providers()).
			Msg("Starting finpath-api")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newStore opens the configured cache backend. The returned close function is
// never nil.
func newStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (cache.Store, func(), error) {
	noop := func() {}

	switch cfg.CacheBackend {
	case config.BackendPostgREST:
		s, err := cache.NewPostgRESTStore(cache.PostgRESTConfig{
			URL:    cfg.SupabaseURL,
			APIKey: cfg.SupabaseAnonKey,
			Table:  cfg.CacheTable,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("postgrest store: %w", err)
		}
		return s, noop, nil

	case config.BackendPostgres:
		s, err := cache.NewPostgresStore(cfg.DatabaseURL, cfg.CacheTable)
		if err != nil {
			return nil, noop, fmt.Errorf("postgres store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		return cache.NewRedisStore(client, "", cfg.CacheTTL), func() { _ = client.Close() }, nil

	case config.BackendMemory:
		logger.Warn().Msg("Using in-memory cache; entries are lost on restart")
		return cache.NewMemoryStore(), noop, nil
	}

	return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

// prepareStore checks the store is reachable and, for Postgres, creates the
// cache table.
func prepareStore(ctx context.Context, store cache.Store) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := store.Ping(pingCtx); err != nil {
		return err
	}
	if pg, ok := store.(*cache.PostgresStore); ok {
		if err := pg.EnsureSchema(pingCtx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

func newService(cfg config.Config, cacheManager *cache.Manager, logger zerolog.Logger) *service.Service {
	yahoo := upstream.NewYahoo()
	window := ratelimit.NewWindow("yahoo", cfg.YahooMaxRequests, cfg.YahooWindow)

	// The window only sees this process's calls. Replicas share Yahoo's quota.
	logger.Info().
		Int("limit", cfg.YahooMaxRequests).
		Dur("window", cfg.YahooWindow).
		Msg("Yahoo rate limit is tracked per process")

	retrier := fetch.NewRetrier(
		fetch.WithMaxRetries(cfg.FetchMaxRetries),
		fetch.WithBaseDelay(cfg.FetchBaseDelay),
		fetch.WithWindow(window),
		fetch.WithMatcher(yahoo.Matcher()),
	)

	return service.New(service.Deps{
		Cache:        cacheManager,
		AlphaVantage: upstream.NewAlphaVantage(cfg.AlphaVantageAPIKey),
		FMP:          upstream.NewFMP(cfg.FMPAPIKey),
		Yahoo:        yahoo,
		NewsAPI:      upstream.NewNewsAPI(cfg.NewsAPIKey),
		LLM:          upstream.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel),
		Vectors:      upstream.NewPinecone(cfg.PineconeAPIKey, cfg.PineconeIndexHost),
		YahooWindow:  window,
		Retrier:      retrier,
		Batch:        fetch.BatchOptions{Size: cfg.BatchSize, Delay: cfg.BatchDelay},
	}, service.WithLogger(logging.NewLogger("service")))
}
