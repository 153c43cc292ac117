package youtube

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	httpclient "markserve/http"
)

// sampleProse is long enough to pass the default gate.
const sampleProse = "welcome back to the channel today we are looking at how caption tracks are served"

func json3Body(text string) string {
	return fmt.Sprintf(`{"events":[{"tStartMs":0,"segs":[{"utf8":%q}]}]}`, text)
}

func newTestHTTPClient(t *testing.T) *httpclient.Client {
	t.Helper()
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Retry.MaxRetries = 0
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = time.Millisecond
	client := httpclient.New(cfg)
	t.Cleanup(func() { client.Close() })
	return client
}

// fakeRunner records invocations and returns canned output.
type fakeRunner struct {
	stdout string
	stderr string
	err    error

	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

// stubFetcher returns a fixed outcome and counts calls.
type stubFetcher struct {
	name    string
	outcome FetchOutcome
	calls   int
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) FetchTranscript(ctx context.Context, id VideoID) FetchOutcome {
	s.calls++
	return s.outcome
}

func vttTrack(text string) *RawSubtitleTrack {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n1\n00:00:01.000 --> 00:00:03.000\n")
	b.WriteString(text)
	b.WriteString("\n")
	return &RawSubtitleTrack{Format: FormatVTT, Content: []byte(b.String()), Language: "en"}
}
