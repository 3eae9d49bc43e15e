package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

// Outcome is the classified result of one upstream attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeOtherError  Outcome = "other_error"
	OutcomePermanent   Outcome = "permanent"
)

// Attempt describes one call to an upstream. Attempts are reported to the
// Retrier's OnAttempt hook and are not retained.
type Attempt struct {
	Number   int
	Upstream string
	Outcome  Outcome
	Err      error
	// Delay is the sleep scheduled before the next attempt; zero when none follows.
	Delay time.Duration
	Time  time.Time
}

// classify maps an attempt error to an Outcome. Throttling takes precedence
// over the permanent check so a 4xx carrying a throttle message is retried.
func classify(err error, m upstream.Matcher) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomePermanent
	case m.MatchesError(err):
		return OutcomeRateLimited
	case upstream.IsPermanent(err):
		return OutcomePermanent
	default:
		return OutcomeOtherError
	}
}
