package classify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// fatal reports whether err must abort the item instead of degrading to
// default labels: rate-limit exhaustion and context termination. The
// dispatcher maps context errors to cancellation, everything else to
// failure.
func fatal(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// transient reports whether err is worth retrying: API rate limiting,
// server-side failures, timeouts, and dropped connections. Context
// cancellation is never transient; the caller is shutting down.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "rate_limit", "resource_exhausted", "timeout", "connection"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
