package upstream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errUpstream5xx  = errors.New("upstream server error")
	errUpstream4xx  = errors.New("upstream request error")
)

// IsAuthError reports whether err originated from an HTTP 401 or an
// "API key"-shaped upstream rejection (spec.md §7, auth-error).
func IsAuthError(err error) bool {
	if errors.Is(err, errUnauthorized) {
		return true
	}
	return errors.Is(err, errUpstream4xx) && strings.Contains(strings.ToLower(err.Error()), "api key")
}

// IsRateLimit reports whether err is an HTTP 429 response.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsRetryable reports whether err is a transient condition the sync
// engine's retry policy should retry: HTTP 429 or 5xx (spec.md §4.3 step 7).
func IsRetryable(err error) bool {
	return errors.Is(err, errUpstream5xx) || IsRateLimit(err)
}

// RateLimitError carries the server-suggested retry delay, surfaced on the
// wire as error.data.retryAfterMs (spec.md §7).
type RateLimitError struct {
	RetryAfterMs *int64
	body         string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.body)
}

func newRateLimitError(retryAfterHeader, body string) error {
	rl := &RateLimitError{body: body}
	if retryAfterHeader != "" {
		if secs, err := strconv.ParseInt(retryAfterHeader, 10, 64); err == nil {
			ms := secs * 1000
			rl.RetryAfterMs = &ms
		}
	}
	return rl
}
