// Package convert turns documents and web pages into plain text and
// markdown.
//
// Local handles HTML (from a URL or a file) and plain text formats. The
// remaining formats in SupportedFormats are accepted by the HTTP surface but
// need an external converter; Local reports them as ErrUnsupportedFormat.
package convert

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"

	httpclient "markserve/http"
)

// Result is a converted document.
type Result struct {
	// Text is the plain text content.
	Text     string
	Markdown string
	// Title may be empty.
	Title string
}

// Converter converts a file path or URL.
type Converter interface {
	Convert(ctx context.Context, source string) (*Result, error)
}

// Local is the built-in Converter.
type Local struct {
	HTTP   *httpclient.Client
	Logger *slog.Logger
}

// NewLocal creates a converter that fetches URLs with client.
func NewLocal(client *httpclient.Client) *Local {
	return &Local{HTTP: client, Logger: slog.Default()}
}

// IsURL reports whether source is an http or https URL.
func IsURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Convert implements Converter.
func (l *Local) Convert(ctx context.Context, source string) (*Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrEmptySource
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	if IsURL(source) {
		res, err = l.convertURL(ctx, source)
	} else {
		res, err = l.convertFile(source)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &ConversionError{Source: source, Err: err}
	}
	l.logger().Debug("convert: converted",
		slog.String("source", source),
		slog.Int("chars", len(res.Text)))
	return res, nil
}

func (l *Local) convertURL(ctx context.Context, rawURL string) (*Result, error) {
	if l.HTTP == nil {
		return nil, errors.New("no http client configured")
	}
	resp, err := l.HTTP.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(resp.URL)
	if err != nil {
		u = &url.URL{}
	}
	name := path.Base(u.Path)
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "html"):
		return convertHTML(resp.Body, u)
	case strings.HasPrefix(contentType, "text/csv"):
		return convertCSV(resp.Body, name)
	case strings.HasPrefix(contentType, "text/"),
		strings.Contains(contentType, "json"),
		strings.Contains(contentType, "xml"):
		return convertText(resp.Body, name), nil
	case contentType == "" && looksLikeHTML(resp.Body):
		return convertHTML(resp.Body, u)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
}

func (l *Local) convertFile(name string) (*Result, error) {
	ext := Ext(name)
	switch ext {
	case "html", "htm", "txt", "md", "csv", "json", "xml":
	default:
		if _, ok := SupportedFormats[ext]; ok {
			return nil, fmt.Errorf("%w: %s requires an external converter", ErrUnsupportedFormat, ext)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	switch ext {
	case "html", "htm":
		abs, err := filepath.Abs(name)
		if err != nil {
			abs = name
		}
		res, err := convertHTML(data, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
		if err != nil {
			return nil, err
		}
		if t := htmlTitle(data); t != "" {
			res.Title = t
		}
		return res, nil
	case "csv":
		return convertCSV(data, filepath.Base(name))
	}
	return convertText(data, filepath.Base(name)), nil
}

// convertHTML extracts the main article with readability. Pages readability
// cannot parse are converted whole.
func convertHTML(body []byte, pageURL *url.URL) (*Result, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		md, mdErr := htmltomarkdown.ConvertString(article.Content)
		if mdErr != nil {
			md = article.TextContent
		}
		title := article.Title
		if title == "" {
			title = htmlTitle(body)
		}
		return &Result{
			Text:     strings.TrimSpace(article.TextContent),
			Markdown: strings.TrimSpace(md),
			Title:    title,
		}, nil
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return nil, fmt.Errorf("html to markdown: %w", err)
	}
	return &Result{
		Text:     htmlText(body),
		Markdown: strings.TrimSpace(md),
		Title:    htmlTitle(body),
	}, nil
}

func convertText(data []byte, name string) *Result {
	text := strings.TrimPrefix(string(data), "\ufeff")
	return &Result{Text: text, Markdown: text, Title: name}
}

// convertCSV renders the rows as a markdown table. The first row is the
// header.
func convertCSV(data []byte, name string) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	text := string(data)
	if len(rows) == 0 {
		return &Result{Text: text, Markdown: "", Title: name}, nil
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = strings.ReplaceAll(strings.TrimSpace(cells[i]), "|", `\|`)
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}
	writeRow(rows[0])
	b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return &Result{Text: text, Markdown: strings.TrimSuffix(b.String(), "\n"), Title: name}, nil
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.Contains(head, []byte("<html"))
}

func (l *Local) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
