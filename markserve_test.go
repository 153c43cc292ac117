package markserve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"markserve/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StorageConfigFile = filepath.Join(t.TempDir(), "storage_config.json")
	return cfg
}

func TestNewWiresServices(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinTranscriptLength = 120
	cfg.YtdlpPath = "/opt/bin/yt-dlp"

	svc, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer svc.Close()

	var names []string
	for _, f := range svc.Transcripts.Fetchers {
		names = append(names, f.Name())
	}
	if len(names) != 2 || names[0] != "ytdlp" || names[1] != "captions-api" {
		t.Errorf("fetchers = %v, want [ytdlp captions-api]", names)
	}
	if svc.Transcripts.Gate.MinLength != 120 {
		t.Errorf("Gate.MinLength = %d, want 120", svc.Transcripts.Gate.MinLength)
	}
	if svc.Metadata != nil || svc.Transcripts.Titles != nil {
		t.Error("title lookups should be off without an API key")
	}
	if _, ok := svc.Root.Get(); ok {
		t.Error("root should start unconfigured")
	}
}

func TestNewWithAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.YouTubeAPIKey = "test-key"

	svc, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer svc.Close()
	if svc.Metadata == nil || svc.Transcripts.Titles == nil {
		t.Error("title lookups should be on with an API key")
	}
}

func TestNewLoadsStoredRoot(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	body := `{"storage_path": "` + filepath.ToSlash(dir) + `"}`
	if err := os.WriteFile(cfg.StorageConfigFile, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	svc, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()
	if got, ok := svc.Root.Get(); !ok || got != filepath.ToSlash(dir) {
		t.Errorf("Root.Get() = %q, %v; want %q", got, ok, dir)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinTranscriptLength = 0
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("New() should reject an invalid config")
	}
}

func TestHTTPConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTPTimeout = 7 * time.Second
	cfg.MaxRetries = 5
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = 9 * time.Second
	cfg.BackoffMultiplier = 3

	hc := HTTPConfig(cfg)
	if hc.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v", hc.Timeout)
	}
	if hc.Retry.MaxRetries != 5 || hc.Retry.InitialBackoff != time.Second ||
		hc.Retry.MaxBackoff != 9*time.Second || hc.Retry.Multiplier != 3 {
		t.Errorf("Retry = %+v", hc.Retry)
	}
}

func TestServicesConvertLocalFile(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\n\nremember the milk"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Title != "notes.md" || res.Markdown != "# Notes\n\nremember the milk" {
		t.Errorf("Convert() = %+v", res)
	}
}

func TestServicesConvertInvalidYouTubeURL(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	_, err = svc.Convert(context.Background(), "https://www.youtube.com/feed/trending")
	var terr *TranscriptError
	if !errors.As(err, &terr) {
		t.Fatalf("Convert() error = %v, want TranscriptError", err)
	}
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("Convert() error = %v, want ErrInvalidURL", err)
	}
}
