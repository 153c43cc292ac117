package markserve

import (
	"context"
	"fmt"
	"log/slog"

	"markserve/config"
	"markserve/convert"
	httpclient "markserve/http"
	"markserve/internal/retry"
	"markserve/storage"
	"markserve/youtube"
)

// Services holds the wired collaborators shared by the HTTP server, the
// MCP server and the CLI.
type Services struct {
	HTTP        *httpclient.Client
	Transcripts *youtube.Orchestrator
	Converter   *convert.Local
	Root        *storage.Root
	Sessions    *storage.SessionStore
	// Metadata is nil unless a YouTube Data API key is configured.
	Metadata *youtube.MetadataClient
}

// HTTPConfig derives the outbound HTTP client settings from cfg.
func HTTPConfig(cfg *config.Config) *httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.HTTPTimeout
	hc.Retry = retry.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.BackoffMultiplier,
		JitterFraction: retry.DefaultConfig().JitterFraction,
	}
	return hc
}

// New builds every service from cfg. A persisted storage root that cannot
// be read is logged and left unconfigured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := httpclient.New(HTTPConfig(cfg))
	gate := youtube.Gate{MinLength: cfg.MinTranscriptLength}

	ytdlp := youtube.NewMediaInfoFetcher(client)
	ytdlp.Path = cfg.YtdlpPath
	ytdlp.Timeout = cfg.YtdlpTimeout
	ytdlp.Logger = logger

	captions := youtube.NewCaptionsAPIFetcher(client)
	captions.Gate = gate
	captions.Logger = logger

	orch := youtube.NewOrchestrator(ytdlp, captions)
	orch.Gate = gate
	orch.Logger = logger

	svc := &Services{
		HTTP:        client,
		Transcripts: orch,
		Converter:   &convert.Local{HTTP: client, Logger: logger},
		Root:        storage.NewRoot(cfg.StorageConfigFile, logger),
	}
	svc.Sessions = storage.NewSessionStore(svc.Root, logger)

	if cfg.YouTubeAPIKey != "" {
		meta, err := youtube.NewMetadataClient(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("youtube metadata client: %w", err)
		}
		svc.Metadata = meta
		orch.Titles = meta
	}

	if err := svc.Root.Load(); err != nil {
		logger.Warn("markserve: ignoring stored storage path", slog.String("error", err.Error()))
	}
	return svc, nil
}

// Close releases the HTTP client's idle connections.
func (s *Services) Close() error {
	if s == nil || s.HTTP == nil {
		return nil
	}
	return s.HTTP.Close()
}

// ExtractTranscript fetches a transcript with the default configuration.
func ExtractTranscript(ctx context.Context, rawURL string) (*youtube.TranscriptResult, error) {
	svc, err := New(ctx, config.DefaultConfig(), nil)
	if err != nil {
		return nil, err
	}
	defer svc.Close()
	return svc.Transcripts.Transcript(ctx, rawURL)
}

// Convert converts a file path or URL with the default configuration.
// YouTube URLs are answered with the transcript.
func Convert(ctx context.Context, source string) (*convert.Result, error) {
	svc, err := New(ctx, config.DefaultConfig(), nil)
	if err != nil {
		return nil, err
	}
	defer svc.Close()
	return svc.Convert(ctx, source)
}

// Convert converts source, routing YouTube URLs through the transcript
// pipeline and validating web page text.
func (s *Services) Convert(ctx context.Context, source string) (*convert.Result, error) {
	if youtube.IsYouTubeURL(source) {
		result, err := s.Transcripts.Transcript(ctx, source)
		if err != nil {
			return nil, err
		}
		title := result.Title
		if title == "" {
			title = fmt.Sprintf("YouTube Transcript (%s)", result.VideoID)
		}
		return &convert.Result{Text: result.Text, Markdown: result.Text, Title: title}, nil
	}

	res, err := s.Converter.Convert(ctx, source)
	if err != nil {
		return nil, err
	}
	if convert.IsURL(source) {
		if err := convert.ValidateURLContent(res.Text); err != nil {
			return nil, &convert.ConversionError{Source: source, Err: err}
		}
	}
	return res, nil
}
