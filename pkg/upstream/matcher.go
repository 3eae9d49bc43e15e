package upstream

import (
	"errors"
	"net/http"
	"strings"
)

// Matcher decides whether a failed call was throttled. A provider may signal
// throttling with a status code, with a message in the body, or both.
type Matcher struct {
	StatusCodes []int
	Substrings  []string
}

// DefaultMatcher matches HTTP 429 and the usual throttling messages.
func DefaultMatcher() Matcher {
	return Matcher{
		StatusCodes: []int{http.StatusTooManyRequests},
		Substrings:  []string{"429", "Too Many Requests"},
	}
}

// Matches reports whether status or message indicate throttling.
func (m Matcher) Matches(status int, message string) bool {
	for _, code := range m.StatusCodes {
		if status == code {
			return true
		}
	}
	if message == "" {
		return false
	}
	for _, s := range m.Substrings {
		if s != "" && strings.Contains(message, s) {
			return true
		}
	}
	return false
}

// MatchesError reports whether err looks throttled according to m. Errors
// already classified as rate limited always match.
func (m Matcher) MatchesError(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) {
		return true
	}
	status := 0
	var upErr *Error
	if errors.As(err, &upErr) {
		status = upErr.StatusCode
	}
	return m.Matches(status, err.Error())
}
