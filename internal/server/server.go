// Package server exposes the service layer over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/Sternrassler/finpath-api/internal/service"
	"github.com/Sternrassler/finpath-api/pkg/logging"
	"github.com/Sternrassler/finpath-api/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// DefaultRequestTimeout bounds each request unless overridden.
const DefaultRequestTimeout = 30 * time.Second

// Server routes HTTP requests to the service.
type Server struct {
	svc     *service.Service
	router  *mux.Router
	handler http.Handler

	timeout time.Duration
	origins []string
	logger  zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout sets the per-request deadline. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithCORSOrigins sets the allowed CORS origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithLogger sets the base logger for request logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a Server for svc.
func New(svc *service.Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		router:  mux.NewRouter(),
		timeout: DefaultRequestTimeout,
		origins: []string{"*"},
		logger:  logging.NewLogger("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	s.router.Use(s.withRequestID, s.withAccessLog, s.withRecovery, s.withTimeout)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: !allowsAny(s.origins),
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the root handler including CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLive).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	md := api.PathPrefix("/market-data").Subrouter()
	md.HandleFunc("/stock/{symbol}", s.handleStock).Methods(http.MethodGet)
	md.HandleFunc("/stock/{symbol}/intraday", s.handleIntraday).Methods(http.MethodGet)
	md.HandleFunc("/stock/{symbol}/daily", s.handleDaily).Methods(http.MethodGet)
	md.HandleFunc("/stock/{symbol}/overview", s.handleOverview).Methods(http.MethodGet)
	md.HandleFunc("/stock/{symbol}/peers", s.handlePeers).Methods(http.MethodGet)
	md.HandleFunc("/market/status", s.handleMarketStatus).Methods(http.MethodGet)
	md.HandleFunc("/indian-market/overview", s.handleIndianOverview).Methods(http.MethodGet)
	md.HandleFunc("/indian-market/index-movers/{index}", s.handleIndexMovers).Methods(http.MethodGet)

	news := api.PathPrefix("/news").Subrouter()
	news.HandleFunc("/latest", s.handleLatestNews).Methods(http.MethodGet)
	news.HandleFunc("/company/{symbol}", s.handleCompanyNews).Methods(http.MethodGet)

	an := api.PathPrefix("/analysis").Subrouter()
	an.HandleFunc("/stock/{symbol}", s.handleStockAnalysis).Methods(http.MethodGet)
	an.HandleFunc("/technical/{symbol}", s.handleTechnical).Methods(http.MethodGet)
	an.HandleFunc("/fundamentals/{symbol}", s.handleFundamentals).Methods(http.MethodGet)

	fg := api.PathPrefix("/fingenie").Subrouter()
	fg.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	fg.HandleFunc("/chat", s.handleChatInfo).Methods(http.MethodGet)
	fg.HandleFunc("/conversations/{user_id}", s.handleHistory).Methods(http.MethodGet)
	fg.HandleFunc("/conversations/{user_id}", s.handleClearConversation).Methods(http.MethodDelete)
	fg.HandleFunc("/knowledge/refresh", s.handleKnowledgeRefresh).Methods(http.MethodPost)

	api.HandleFunc("/cache/sweep", s.handleCacheSweep).Methods(http.MethodPost)
	api.HandleFunc("/cache/{key}", s.handleCacheDelete).Methods(http.MethodDelete)
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
