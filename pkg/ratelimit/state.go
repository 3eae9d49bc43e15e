package ratelimit

import (
	"time"
)

// State is a point-in-time view of a Window, exposed on the health endpoint.
type State struct {
	// Upstream is the provider the window guards.
	Upstream string `json:"upstream"`

	// Limit is the number of calls allowed per window.
	Limit int `json:"limit"`

	// Window is the window length.
	Window time.Duration `json:"window_ns"`

	// Used is the number of calls recorded in the current window.
	Used int `json:"used"`

	// Remaining is Limit - Used.
	Remaining int `json:"remaining"`

	// ResetAt is when the oldest recorded call leaves the window.
	ResetAt time.Time `json:"reset_at"`

	// IsHealthy is true while at least one call can proceed without waiting.
	IsHealthy bool `json:"is_healthy"`
}

// NeedsThrottling returns true if the next call would have to wait.
func (s *State) NeedsThrottling() bool {
	return s.Remaining <= 0
}

// TimeUntilReset returns the duration until the oldest call leaves the window.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining > 0
}
