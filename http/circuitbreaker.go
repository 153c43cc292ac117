package http

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a host's circuit.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a host's circuit is open.
var ErrCircuitOpen = errors.New("http: circuit breaker is open")

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before one probe is allowed.
	RecoveryTimeout time.Duration
	// IsTransientError decides which failures count. Nil counts all of them.
	IsTransientError func(error) bool
}

// DefaultCircuitBreakerConfig returns the default thresholds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

type circuit struct {
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// CircuitBreaker tracks consecutive failures per host and fails fast while
// a host's circuit is open.
type CircuitBreaker struct {
	mu       sync.Mutex
	config   CircuitBreakerConfig
	circuits map[string]*circuit
	now      func() time.Time
}

// NewCircuitBreaker creates a circuit breaker, filling zero fields with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	return &CircuitBreaker{
		config:   cfg,
		circuits: make(map[string]*circuit),
		now:      time.Now,
	}
}

// Allow returns ErrCircuitOpen when host should not be contacted. After the
// recovery timeout a single probe request is let through.
func (cb *CircuitBreaker) Allow(host string) error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(host)
	switch c.state {
	case CircuitOpen:
		if cb.now().Sub(c.openedAt) < cb.config.RecoveryTimeout {
			return ErrCircuitOpen
		}
		c.state = CircuitHalfOpen
		c.probing = true
		return nil
	case CircuitHalfOpen:
		if c.probing {
			return ErrCircuitOpen
		}
		c.probing = true
	}
	return nil
}

// RecordSuccess closes the circuit for host.
func (cb *CircuitBreaker) RecordSuccess(host string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(host)
	c.state = CircuitClosed
	c.failures = 0
	c.probing = false
}

// RecordFailure counts a failure for host. A non-transient failure that
// carries a response, such as a 404, shows the host is up and closes the
// circuit. Any other non-transient failure only releases a pending probe.
func (cb *CircuitBreaker) RecordFailure(host string, err error) {
	if cb == nil {
		return
	}
	if cb.config.IsTransientError != nil && !cb.config.IsTransientError(err) {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			cb.RecordSuccess(host)
			return
		}
		cb.Release(host)
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(host)
	c.failures++
	c.probing = false
	if c.state == CircuitHalfOpen || c.failures >= cb.config.FailureThreshold {
		c.state = CircuitOpen
		c.openedAt = cb.now()
	}
}

// Release ends a half-open probe without judging the host, so the next
// request may probe again. It does nothing when no probe is pending.
func (cb *CircuitBreaker) Release(host string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if c, ok := cb.circuits[host]; ok {
		c.probing = false
	}
}

// State returns the current state for host.
func (cb *CircuitBreaker) State(host string) CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[host]
	if !ok {
		return CircuitClosed
	}
	if c.state == CircuitOpen && cb.now().Sub(c.openedAt) >= cb.config.RecoveryTimeout {
		return CircuitHalfOpen
	}
	return c.state
}

// Must be called with mu held.
func (cb *CircuitBreaker) get(host string) *circuit {
	c, ok := cb.circuits[host]
	if !ok {
		c = &circuit{}
		cb.circuits[host] = c
	}
	return c
}

// IsTransientHTTPError reports whether err should count against a host:
// rate limits, 5xx responses and transport failures do, other 4xx and
// caller cancellation do not.
func IsTransientHTTPError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
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
