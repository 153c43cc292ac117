package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	cfg.Retry.MaxRetries = 2
	cfg.RateLimiter.MaxPenalty = 5 * time.Millisecond
	return cfg
}

func TestNewClientNilConfig(t *testing.T) {
	client := New(nil)
	if client == nil {
		t.Fatal("expected client to be created with default config")
	}
	client.Close()
}

func TestClientGetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("test response"))
	}))
	defer server.Close()

	client := New(testConfig())
	defer client.Close()

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "test response" {
		t.Errorf("expected 'test response', got %q", string(resp.Body))
	}
}

func TestClientDoReplaysBody(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"q":1}` {
			t.Errorf("attempt %d got body %q", atomic.LoadInt32(&attempts)+1, body)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type header")
		}
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(testConfig())
	resp, err := client.Do(context.Background(), http.MethodPost, server.URL, []byte(`{"q":1}`),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q, want ok", resp.Body)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestClientRateLimitRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("success"))
	}))
	defer server.Close()

	client := New(testConfig())
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "success" {
		t.Errorf("body = %q", resp.Body)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestClientNotFoundIsNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(testConfig())
	_, err := client.Get(context.Background(), server.URL)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", httpErr.StatusCode)
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, want 404", StatusCode(err))
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestClientServerErrorExhaustsRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig()
	client := New(cfg)
	_, err := client.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("StatusCode() = %d, want 500", StatusCode(err))
	}
	if got := atomic.LoadInt32(&attempts); int(got) != cfg.Retry.MaxRetries+1 {
		t.Errorf("attempts = %d, want %d", got, cfg.Retry.MaxRetries+1)
	}
}

func TestClientBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 4
	resp, err := New(cfg).Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "0123" {
		t.Errorf("body = %q, want truncated to 4 bytes", resp.Body)
	}
}

func TestClientInvalidURL(t *testing.T) {
	_, err := New(testConfig()).Get(context.Background(), "not a url")
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestClientContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig()).Get(ctx, server.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "3", 3 * time.Second},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			if got := parseRetryAfter(h); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestHostOf(t *testing.T) {
	tests := map[string]string{
		"https://www.YouTube.com/watch?v=x": "www.youtube.com",
		"http://127.0.0.1:8080/a":           "127.0.0.1",
		"relative/path":                     "",
	}
	for in, want := range tests {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}

// openCircuitClient returns a client whose breaker opens after one failure
// and a function that moves its clock past the recovery timeout.
func openCircuitClient(tweaks ...func(*Config)) (*Client, func()) {
	cfg := testConfig()
	cfg.Retry.MaxRetries = 0
	cfg.CircuitBreaker.FailureThreshold = 1
	cfg.CircuitBreaker.RecoveryTimeout = time.Minute
	for _, tweak := range tweaks {
		tweak(cfg)
	}
	client := New(cfg)

	var mu sync.Mutex
	now := time.Now()
	client.circuitBreaker.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func() {
		mu.Lock()
		now = now.Add(2 * time.Minute)
		mu.Unlock()
	}
	return client, advance
}

func TestClientNotFoundProbeClosesCircuit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			http.NotFound(w, r)
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer server.Close()

	client, advance := openCircuitClient()
	ctx := context.Background()

	if _, err := client.Get(ctx, server.URL); StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("first call = %v, want 500", err)
	}
	if _, err := client.Get(ctx, server.URL); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open circuit = %v, want ErrCircuitOpen", err)
	}

	advance()
	if _, err := client.Get(ctx, server.URL); StatusCode(err) != http.StatusNotFound {
		t.Fatalf("probe = %v, want 404", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := client.Get(ctx, server.URL); err != nil {
			t.Fatalf("call %d after 404 probe: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("server calls = %d, want 5", got)
	}
}

func TestClientCanceledProbeReleasesCircuit(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			cancel()
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer server.Close()

	client, advance := openCircuitClient()
	if _, err := client.Get(context.Background(), server.URL); err == nil {
		t.Fatal("expected first call to fail")
	}

	advance()
	if _, err := client.Get(ctx, server.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled probe = %v, want context.Canceled", err)
	}
	if _, err := client.Get(context.Background(), server.URL); err != nil {
		t.Fatalf("call after canceled probe: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestClientProbeCanceledBeforeSendIsReleased(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	// A rated host makes the rate limiter wait, which fails on a done context.
	client, advance := openCircuitClient(func(cfg *Config) {
		cfg.RateLimiter.HostRates = map[string]float64{hostOf(server.URL): 1000}
	})
	if _, err := client.Get(context.Background(), server.URL); err == nil {
		t.Fatal("expected first call to fail")
	}

	advance()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Get(ctx, server.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled probe = %v, want context.Canceled", err)
	}
	if _, err := client.Get(context.Background(), server.URL); err != nil {
		t.Fatalf("call after canceled probe: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}
