package http

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError indicates the server rate limited the request (429 or 503).
type RateLimitError struct {
	StatusCode int
	// RetryAfter is the server-provided wait, zero when absent.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// HTTPError is a non-2xx response that is not a rate limit.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.StatusCode
	}
	return 0
}

var (
	// ErrRequestFailed wraps transport-level failures (DNS, TCP, TLS, timeouts).
	ErrRequestFailed = errors.New("http request failed")
	// ErrInvalidURL is returned for URLs without a host.
	ErrInvalidURL = errors.New("http: invalid url")
)
