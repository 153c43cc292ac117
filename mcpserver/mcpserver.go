// Package mcpserver exposes transcript extraction and URL conversion as MCP
// tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"markserve/convert"
	"markserve/internal/apperr"
	"markserve/youtube"
)

// Transcriber fetches YouTube transcripts.
type Transcriber interface {
	Transcript(ctx context.Context, rawURL string) (*youtube.TranscriptResult, error)
}

// Deps are the collaborators used by the tools. Either may be nil, in which
// case the tool needing it reports an error.
type Deps struct {
	Transcripts Transcriber
	Converter   convert.Converter
	Logger      *slog.Logger
}

// NewServer creates an MCP server with all tools registered.
func NewServer(version string, deps Deps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "markserve",
		Version: version,
	}, nil)
	Register(server, deps)
	return server
}

// Run serves server over stdin and stdout until ctx is done or the client
// disconnects.
func Run(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// TranscriptInput is the input of youtube_transcript.
type TranscriptInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL (watch, youtu.be, shorts or embed link)"`
}

// TranscriptOutput is the structured result of youtube_transcript.
type TranscriptOutput struct {
	VideoID     string `json:"video_id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Language    string `json:"language"`
	IsGenerated bool   `json:"is_generated"`
	Source      string `json:"source"`
	Text        string `json:"text"`
}

// ConvertInput is the input of convert_url.
type ConvertInput struct {
	URL string `json:"url" jsonschema:"http or https URL of a web page or document; YouTube links return the transcript"`
}

// ConvertOutput is the structured result of convert_url.
type ConvertOutput struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown"`
}

// Register adds the youtube_transcript and convert_url tools to server.
func Register(server *mcp.Server, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript",
		Description: "Fetch the transcript of a YouTube video. Tries yt-dlp first, then YouTube's caption endpoints, and returns plain text with the caption language and whether it was auto-generated.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptOutput, error) {
		if strings.TrimSpace(input.URL) == "" {
			return nil, TranscriptOutput{}, errors.New("url is required")
		}
		if deps.Transcripts == nil {
			return nil, TranscriptOutput{}, errors.New("transcript extraction is not configured")
		}
		result, err := deps.Transcripts.Transcript(ctx, input.URL)
		if err != nil {
			return nil, TranscriptOutput{}, toolError(logger, "youtube_transcript", err)
		}
		out := TranscriptOutput{
			VideoID:     string(result.VideoID),
			URL:         result.URL,
			Title:       result.Title,
			Language:    result.Language,
			IsGenerated: result.IsGenerated,
			Source:      result.Source,
			Text:        result.Text,
		}
		return textResult(result.Text), out, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "convert_url",
		Description: "Convert a web page or document URL to markdown. YouTube URLs are answered with the video transcript.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ConvertInput) (*mcp.CallToolResult, ConvertOutput, error) {
		rawURL := strings.TrimSpace(input.URL)
		if rawURL == "" {
			return nil, ConvertOutput{}, errors.New("url is required")
		}

		if youtube.IsYouTubeURL(rawURL) {
			if deps.Transcripts == nil {
				return nil, ConvertOutput{}, errors.New("transcript extraction is not configured")
			}
			result, err := deps.Transcripts.Transcript(ctx, rawURL)
			if err != nil {
				return nil, ConvertOutput{}, toolError(logger, "convert_url", err)
			}
			out := ConvertOutput{
				URL:      result.URL,
				Type:     "youtube",
				Title:    fmt.Sprintf("YouTube Transcript (%s)", result.VideoID),
				Markdown: result.Text,
			}
			return textResult(out.Markdown), out, nil
		}

		if !convert.IsURL(rawURL) {
			return nil, ConvertOutput{}, fmt.Errorf("not an http or https URL: %q", rawURL)
		}
		if deps.Converter == nil {
			return nil, ConvertOutput{}, errors.New("document conversion is not configured")
		}
		res, err := deps.Converter.Convert(ctx, rawURL)
		if err == nil {
			err = convert.ValidateURLContent(res.Text)
		}
		if err != nil {
			return nil, ConvertOutput{}, toolError(logger, "convert_url", err)
		}
		out := ConvertOutput{URL: rawURL, Type: "url", Title: res.Title, Markdown: res.Markdown}
		return textResult(out.Markdown), out, nil
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// toolError prefixes err with its classified reason so clients can branch
// on it.
func toolError(logger *slog.Logger, tool string, err error) error {
	classified := apperr.Classify(err)
	logger.Warn("mcp: tool failed",
		slog.String("tool", tool),
		slog.String("reason", classified.Reason),
		slog.String("error", err.Error()))
	return fmt.Errorf("%s: %w", classified.Reason, err)
}
