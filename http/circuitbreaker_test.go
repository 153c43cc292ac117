package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestBreaker(threshold int) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		RecoveryTimeout:  time.Minute,
		IsTransientError: IsTransientHTTPError,
	})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	testErr := errors.New("connection reset")

	cb.RecordFailure("example.com", testErr)
	cb.RecordFailure("example.com", testErr)
	if cb.State("example.com") != CircuitClosed {
		t.Fatal("circuit should still be closed after 2 failures")
	}

	cb.RecordFailure("example.com", testErr)
	if cb.State("example.com") != CircuitOpen {
		t.Fatal("circuit should be open after 3 failures")
	}
	if err := cb.Allow("example.com"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
	if err := cb.Allow("other.com"); err != nil {
		t.Errorf("other hosts must not be affected, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	cb.RecordFailure("h", errors.New("timeout"))

	*now = now.Add(2 * time.Minute)
	if cb.State("h") != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State("h"))
	}
	if err := cb.Allow("h"); err != nil {
		t.Fatalf("first probe should be allowed, got %v", err)
	}
	if err := cb.Allow("h"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second concurrent probe should be rejected, got %v", err)
	}

	cb.RecordSuccess("h")
	if cb.State("h") != CircuitClosed {
		t.Errorf("state = %v, want closed after successful probe", cb.State("h"))
	}
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb, now := newTestBreaker(1)
	cb.RecordFailure("h", errors.New("timeout"))
	*now = now.Add(2 * time.Minute)

	if err := cb.Allow("h"); err != nil {
		t.Fatalf("probe should be allowed, got %v", err)
	}
	cb.RecordFailure("h", errors.New("timeout"))
	if cb.State("h") != CircuitOpen {
		t.Errorf("state = %v, want open", cb.State("h"))
	}
}

func TestCircuitBreakerIgnoresPermanentErrors(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.RecordFailure("h", &HTTPError{StatusCode: 404})
	cb.RecordFailure("h", context.Canceled)

	if cb.State("h") != CircuitClosed {
		t.Errorf("4xx and cancellation must not open the circuit")
	}
}

func TestCircuitBreakerNotFoundProbeCloses(t *testing.T) {
	cb, now := newTestBreaker(1)
	cb.RecordFailure("h", errors.New("timeout"))
	*now = now.Add(2 * time.Minute)

	if err := cb.Allow("h"); err != nil {
		t.Fatalf("probe should be allowed, got %v", err)
	}
	cb.RecordFailure("h", &HTTPError{StatusCode: 404})
	if cb.State("h") != CircuitClosed {
		t.Errorf("state = %v, want closed after a probe that got a response", cb.State("h"))
	}
	if err := cb.Allow("h"); err != nil {
		t.Errorf("Allow() after 404 probe = %v, want nil", err)
	}
}

func TestCircuitBreakerAbandonedProbeIsReleased(t *testing.T) {
	tests := []struct {
		name   string
		finish func(cb *CircuitBreaker)
	}{
		{"canceled", func(cb *CircuitBreaker) { cb.RecordFailure("h", context.Canceled) }},
		{"released", func(cb *CircuitBreaker) { cb.Release("h") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, now := newTestBreaker(1)
			cb.RecordFailure("h", errors.New("timeout"))
			*now = now.Add(2 * time.Minute)

			if err := cb.Allow("h"); err != nil {
				t.Fatalf("probe should be allowed, got %v", err)
			}
			tt.finish(cb)
			if err := cb.Allow("h"); err != nil {
				t.Errorf("next probe = %v, want allowed", err)
			}
			if cb.State("h") != CircuitHalfOpen {
				t.Errorf("state = %v, want half-open", cb.State("h"))
			}
		})
	}
}

func TestCircuitBreakerReleaseUnknownHost(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.Release("nobody")
	if cb.State("nobody") != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.State("nobody"))
	}
	var nilBreaker *CircuitBreaker
	nilBreaker.Release("h")
}

func TestIsTransientHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &RateLimitError{StatusCode: 429}, true},
		{"server error", &HTTPError{StatusCode: 502}, true},
		{"not found", &HTTPError{StatusCode: 404}, false},
		{"wrapped forbidden", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 403}), false},
		{"canceled", context.Canceled, false},
		{"network", errors.New("dial tcp: refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientHTTPError(tt.err); got != tt.want {
				t.Errorf("IsTransientHTTPError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitStateString(t *testing.T) {
	if CircuitHalfOpen.String() != "half-open" || CircuitState(9).String() != "unknown" {
		t.Error("unexpected CircuitState strings")
	}
}
