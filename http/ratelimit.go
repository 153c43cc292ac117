package http

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig defines per-host request rates.
type RateLimiterConfig struct {
	// YouTubeRPS applies to youtube.com, youtu.be and googlevideo hosts.
	YouTubeRPS float64
	// DefaultRPS applies to every other host. Zero means unlimited.
	DefaultRPS float64
	// HostRates overrides the rate for exact host names.
	HostRates map[string]float64
	// MaxPenalty caps how long a host is paused after a 429.
	MaxPenalty time.Duration
}

// DefaultRateLimiterConfig keeps YouTube traffic polite and leaves other
// hosts unthrottled.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		YouTubeRPS: 4,
		DefaultRPS: 0,
		MaxPenalty: 30 * time.Second,
	}
}

// RateLimiter is a per-host token bucket with a pause window that opens
// whenever a host answers with a rate limit.
type RateLimiter struct {
	mu       sync.Mutex
	config   RateLimiterConfig
	limiters map[string]*rate.Limiter
	// pausedUntil holds the earliest time a rate limited host may be retried.
	pausedUntil map[string]time.Time
	strikes     map[string]int
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.MaxPenalty <= 0 {
		cfg.MaxPenalty = DefaultRateLimiterConfig().MaxPenalty
	}
	return &RateLimiter{
		config:      cfg,
		limiters:    make(map[string]*rate.Limiter),
		pausedUntil: make(map[string]time.Time),
		strikes:     make(map[string]int),
	}
}

// Wait blocks until host may receive another request or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl == nil {
		return nil
	}

	rl.mu.Lock()
	until := rl.pausedUntil[host]
	limiter := rl.limiterLocked(host)
	rl.mu.Unlock()

	if d := time.Until(until); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// RecordRateLimit pauses host. The pause doubles with each consecutive
// strike, starts at one second, and never drops below retryAfter.
func (rl *RateLimiter) RecordRateLimit(host string, retryAfter time.Duration) time.Duration {
	if rl == nil {
		return retryAfter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.strikes[host]++
	penalty := time.Second << (rl.strikes[host] - 1)
	if retryAfter > penalty {
		penalty = retryAfter
	}
	if penalty > rl.config.MaxPenalty {
		penalty = rl.config.MaxPenalty
	}
	rl.pausedUntil[host] = time.Now().Add(penalty)
	return penalty
}

// RecordSuccess clears the strike count for host.
func (rl *RateLimiter) RecordSuccess(host string) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.strikes, host)
	delete(rl.pausedUntil, host)
	rl.mu.Unlock()
}

// Paused reports whether host is inside a rate limit pause.
func (rl *RateLimiter) Paused(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return time.Now().Before(rl.pausedUntil[host])
}

// limiterLocked returns the bucket for host, or nil for unlimited hosts.
// Must be called with mu held.
func (rl *RateLimiter) limiterLocked(host string) *rate.Limiter {
	rps := rl.rps(host)
	if rps <= 0 {
		return nil
	}
	if l, ok := rl.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[host] = l
	return l
}

func (rl *RateLimiter) rps(host string) float64 {
	if v, ok := rl.config.HostRates[host]; ok {
		return v
	}
	if isYouTubeHost(host) {
		return rl.config.YouTubeRPS
	}
	return rl.config.DefaultRPS
}

func isYouTubeHost(host string) bool {
	for _, suffix := range []string{"youtube.com", "youtu.be", "googlevideo.com", "ytimg.com"} {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
