package service

import (
	"context"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/ratelimit"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

// ComponentHealth is the state of one dependency.
type ComponentHealth struct {
	Status         string  `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// HealthReport is returned by GET /health.
type HealthReport struct {
	Status         string                     `json:"status"`
	Version        string                     `json:"version"`
	Components     map[string]ComponentHealth `json:"components"`
	Providers      map[string]bool            `json:"providers"`
	RateLimits     []ratelimit.State          `json:"rate_limits"`
	Uptime         string                     `json:"uptime"`
	ResponseTimeMS float64                    `json:"response_time_ms"`
}

// Health checks the cache store and reports provider configuration and
// rate-limit windows. Status is "degraded" when the store is unreachable.
func (s *Service) Health(ctx context.Context) HealthReport {
	start := time.Now()
	r := HealthReport{
		Status:     "healthy",
		Version:    Version,
		Components: map[string]ComponentHealth{},
		Providers:  s.providers(),
		Uptime:     s.now().Sub(s.started).Round(time.Second).String(),
	}

	pingStart := time.Now()
	if err := s.cache.Ping(ctx); err != nil {
		r.Components["cache"] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
		r.Status = "degraded"
	} else {
		r.Components["cache"] = ComponentHealth{Status: "healthy", ResponseTimeMS: millis(time.Since(pingStart))}
	}

	st := s.yahooWindow.State()
	st.UpdateHealth()
	r.RateLimits = append(r.RateLimits, st)

	r.ResponseTimeMS = millis(time.Since(start))
	return r
}

// Ready reports whether the cache store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

func (s *Service) providers() map[string]bool {
	p := map[string]bool{
		"alpha_vantage": s.av != nil && s.av.Configured(),
		"fmp":           s.fmp != nil && s.fmp.Configured(),
		"yahoo":         s.yahoo != nil,
		"newsapi":       s.news != nil && s.news.Configured(),
		"gemini":        s.llm != nil && s.llm.Configured(),
		"pinecone":      s.vectors != nil && s.vectors.Configured(),
	}
	return p
}

func millis(d time.Duration) float64 {
	return round2(float64(d) / float64(time.Millisecond))
}
