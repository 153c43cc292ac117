// Package http provides the outbound HTTP client used to fetch subtitle
// tracks, watch pages and web documents. Requests are rate limited per host,
// retried on transient failures and short-circuited when a host keeps failing.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"markserve/internal/retry"
)

// DefaultUserAgent is sent when the caller does not set one. YouTube serves
// consent interstitials to obvious bots, so this looks like a desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Client wraps an HTTP client with retry logic and rate limit handling.
type Client struct {
	base           *http.Client
	config         *Config
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout for a single attempt.
	Timeout time.Duration

	Retry retry.Config

	UserAgent string

	// MaxBodyBytes caps the response body read into memory.
	MaxBodyBytes int64

	RateLimiter    RateLimiterConfig
	CircuitBreaker CircuitBreakerConfig

	// Transport overrides the round tripper; used by tests.
	Transport http.RoundTripper
}

// DefaultConfig returns defaults tuned for subtitle downloads.
func DefaultConfig() *Config {
	cb := DefaultCircuitBreakerConfig()
	cb.IsTransientError = IsTransientHTTPError
	return &Config{
		Timeout:        30 * time.Second,
		Retry:          retry.DefaultConfig(),
		UserAgent:      DefaultUserAgent,
		MaxBodyBytes:   20 << 20,
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: cb,
	}
}

// New creates a client. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}

	return &Client{
		base:           &http.Client{Timeout: cfg.Timeout, Transport: transport},
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.RateLimiter),
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreaker),
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final URL after redirects.
	URL string
}

// Get performs a GET request with retry logic.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, nil, nil)
}

// Do performs an HTTP request. The body is replayed on every attempt.
// Non-2xx responses are returned as *HTTPError or *RateLimitError.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) (*Response, error) {
	host := hostOf(rawURL)
	if host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	if err := c.circuitBreaker.Allow(host); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, host); err != nil {
		c.circuitBreaker.Release(host)
		return nil, err
	}

	var out *Response
	err := retry.Do(ctx, c.config.Retry, isRetryableHTTPError, func(ctx context.Context) error {
		resp, err := c.attempt(ctx, method, rawURL, body, headers)
		if err != nil {
			var rl *RateLimitError
			if errors.As(err, &rl) {
				c.rateLimiter.RecordRateLimit(host, rl.RetryAfter)
				if werr := c.rateLimiter.Wait(ctx, host); werr != nil {
					return werr
				}
			}
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		// A request the caller abandoned says nothing about the host.
		if ctx.Err() != nil {
			c.circuitBreaker.Release(host)
		} else {
			c.circuitBreaker.RecordFailure(host, err)
		}
		return nil, err
	}

	c.rateLimiter.RecordSuccess(host)
	c.circuitBreaker.RecordSuccess(host)
	return out, nil
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: parseRetryAfter(resp.Header)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL, Body: data}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        finalURL,
	}, nil
}

// isRetryableHTTPError retries rate limits, 5xx responses and network errors.
func isRetryableHTTPError(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date.
func parseRetryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// hostOf returns the lowercase host of rawURL without the port.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.base.CloseIdleConnections()
	return nil
}
