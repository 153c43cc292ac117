package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"markserve"
	"markserve/api"
	"markserve/config"
	"markserve/convert"
	"markserve/mcpserver"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "serve":
		cmdServe(args)
	case "transcript":
		cmdTranscript(args)
	case "convert":
		cmdConvert(args)
	case "mcp":
		cmdMCP(args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `markserve - document, web page and YouTube transcript converter

Usage:
  markserve serve [flags]                  Run the HTTP server
  markserve transcript [flags] <url>       Print the transcript of a YouTube video
  markserve convert [flags] <path|url>     Convert a file or URL to markdown
  markserve mcp                            Serve MCP tools over stdio
  markserve version                        Print the version
  markserve help                           Show this help message

Examples:
  markserve serve --addr :8080
  markserve transcript https://youtu.be/dQw4w9WgXcQ
  markserve transcript --json "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42"
  markserve convert ./notes.html
  markserve convert --text https://example.com/article

For help on specific command: markserve <command> -h
`)
}

// setup loads configuration, installs the logger and builds the services.
func setup(ctx context.Context) (*config.Config, *markserve.Services, *slog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	svc, err := markserve.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg, svc, logger
}

// newLogger writes to stderr so stdout stays free for command output and
// the MCP protocol.
func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides config)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: markserve serve [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, svc, logger := setup(ctx)
	defer svc.Close()
	if *addr != "" {
		cfg.Addr = *addr
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		Transcripts:    svc.Transcripts,
		Converter:      svc.Converter,
		Root:           svc.Root,
		Sessions:       svc.Sessions,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	storagePath, _ := svc.Root.Get()
	logger.Info("starting markserve",
		slog.String("version", version),
		slog.String("addr", cfg.Addr),
		slog.Int("formats", len(convert.SupportedFormats)),
		slog.String("storage_path", storagePath),
		slog.Bool("title_lookup", svc.Metadata != nil))

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
		}
	}
}

func cmdTranscript(args []string) {
	fs := flag.NewFlagSet("transcript", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: markserve transcript [flags] <youtube-url>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing youtube-url\n")
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cfg, svc, _ := setup(ctx)
	defer svc.Close()

	// Both strategies may run back to back.
	ctx, cancel := context.WithTimeout(ctx, cfg.YtdlpTimeout+2*cfg.HTTPTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Fetching transcript for %s...\n", argv[0])
	result, err := svc.Transcripts.Transcript(ctx, argv[0])
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "Error: request timed out. YouTube may be throttling requests.\n")
		} else {
			fmt.Fprintf(os.Stderr, "Error fetching transcript: %v\n", err)
		}
		os.Exit(1)
	}

	if *asJSON {
		printJSON(map[string]any{
			"video_id":     result.VideoID,
			"url":          result.URL,
			"title":        result.Title,
			"language":     result.Language,
			"is_generated": result.IsGenerated,
			"source":       result.Source,
			"text":         result.Text,
		})
		return
	}

	fmt.Printf("Video ID:       %s\n", result.VideoID)
	if result.Title != "" {
		fmt.Printf("Title:          %s\n", result.Title)
	}
	fmt.Printf("Language:       %s\n", result.Language)
	fmt.Printf("Auto-generated: %v\n", result.IsGenerated)
	fmt.Printf("Source:         %s (%s)\n", result.Source, result.Format)
	fmt.Printf("\nTranscript (%d chars):\n\n%s\n", len(result.Text), result.Text)
}

func cmdConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	textOnly := fs.Bool("text", false, "Print plain text instead of markdown")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: markserve convert [flags] <path|url>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing path or url\n")
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cfg, svc, _ := setup(ctx)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.YtdlpTimeout+2*cfg.HTTPTimeout)
	defer cancel()

	res, err := svc.Convert(ctx, argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error converting %s: %v\n", argv[0], err)
		os.Exit(1)
	}

	switch {
	case *asJSON:
		printJSON(map[string]any{"title": res.Title, "text": res.Text, "markdown": res.Markdown})
	case *textOnly:
		fmt.Println(res.Text)
	default:
		fmt.Println(res.Markdown)
	}
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: markserve mcp\n\nServes youtube_transcript and convert_url over stdin/stdout.\n")
	}
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_, svc, logger := setup(ctx)
	defer svc.Close()

	server := mcpserver.NewServer(version, mcpserver.Deps{
		Transcripts: svc.Transcripts,
		Converter:   svc.Converter,
		Logger:      logger,
	})
	logger.Info("serving mcp over stdio", slog.String("version", version))
	if err := mcpserver.Run(ctx, server); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
