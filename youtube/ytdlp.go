package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	httpclient "markserve/http"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 2 * time.Minute
)

// englishLocales is the locale preference used by both fetchers.
var englishLocales = []string{"en", "en-US", "en-GB"}

// Runner runs an external command and returns its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. The process is killed when ctx ends.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// MediaInfoFetcher asks yt-dlp for the video's subtitle tracks and downloads
// the best one.
type MediaInfoFetcher struct {
	// Path is the yt-dlp executable. Defaults to "yt-dlp".
	Path string
	// Timeout bounds one yt-dlp run.
	Timeout time.Duration
	// ExtraArgs are appended before the URL.
	ExtraArgs []string

	Runner Runner
	HTTP   *httpclient.Client
	Logger *slog.Logger
}

// NewMediaInfoFetcher creates a fetcher that downloads tracks with client.
func NewMediaInfoFetcher(client *httpclient.Client) *MediaInfoFetcher {
	return &MediaInfoFetcher{
		Path:    defaultYtdlpPath,
		Timeout: defaultYtdlpTimeout,
		Runner:  ExecRunner{},
		HTTP:    client,
		Logger:  slog.Default(),
	}
}

// Name implements Fetcher.
func (m *MediaInfoFetcher) Name() string { return "ytdlp" }

// ytdlpInfo is the part of yt-dlp's -J output this fetcher reads.
type ytdlpInfo struct {
	ID                string                      `json:"id"`
	Title             string                      `json:"title"`
	Subtitles         map[string][]ytdlpSubFormat `json:"subtitles"`
	AutomaticCaptions map[string][]ytdlpSubFormat `json:"automatic_captions"`
}

type ytdlpSubFormat struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// FetchTranscript implements Fetcher.
func (m *MediaInfoFetcher) FetchTranscript(ctx context.Context, id VideoID) FetchOutcome {
	log := m.logger().With(slog.String("video_id", string(id)), slog.String("fetcher", m.Name()))

	info, outcome, ok := m.mediaInfo(ctx, id)
	if !ok {
		return outcome
	}

	lang, generated, formats, found := selectLanguage(info)
	if !found {
		log.Info("youtube: yt-dlp reported no subtitle tracks")
		return Soft(ReasonNoTracks, fmt.Errorf("youtube: yt-dlp found no subtitles for %s", id))
	}

	sub, found := selectSubFormat(formats)
	if !found {
		log.Warn("youtube: only playlist subtitle formats offered", slog.String("lang", lang))
		return Soft(ReasonPlaylistReceived, ErrPlaylistContent)
	}

	log.Info("youtube: downloading subtitle track",
		slog.String("lang", lang),
		slog.String("format", sub.Ext),
		slog.Bool("automatic", generated))

	if m.HTTP == nil {
		return Soft(ReasonFetchFailed, errors.New("youtube: no http client configured"))
	}
	resp, err := m.HTTP.Get(ctx, sub.URL)
	if err != nil {
		if out, done := canceled(ctx); done {
			return out
		}
		return Soft(ReasonFetchFailed, fmt.Errorf("youtube: download %s subtitles: %w", sub.Ext, err))
	}
	if IsPlaylist(resp.Body) {
		log.Warn("youtube: got HLS playlist instead of subtitles")
		return Soft(ReasonPlaylistReceived, ErrPlaylistContent)
	}

	out := Fetched(&RawSubtitleTrack{
		Format:      ParseFormat(sub.Ext),
		URL:         sub.URL,
		Content:     resp.Body,
		Language:    lang,
		IsGenerated: generated,
	})
	out.Title = info.Title
	return out
}

// mediaInfo runs yt-dlp and parses its output. When ok is false the
// returned outcome explains why.
func (m *MediaInfoFetcher) mediaInfo(ctx context.Context, id VideoID) (*ytdlpInfo, FetchOutcome, bool) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultYtdlpTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-J", "--skip-download", "--no-warnings", "--no-playlist"}
	args = append(args, m.ExtraArgs...)
	args = append(args, WatchURL(id))

	runner := m.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	stdout, stderr, err := runner.Run(runCtx, m.path(), args...)
	if err != nil {
		if out, done := canceled(ctx); done {
			return nil, out, false
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, Soft(ReasonFetchFailed, fmt.Errorf("youtube: yt-dlp timed out after %v", timeout)), false
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, Soft(ReasonToolUnavailable, ErrYtdlpNotInstalled), false
		}
		return nil, classifyYtdlpError(string(stderr), err), false
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, Soft(ReasonDecodeFailed, fmt.Errorf("youtube: parse yt-dlp output: %w", err)), false
	}
	return &info, FetchOutcome{}, true
}

// unavailablePhrases are yt-dlp error fragments that mean the video itself
// cannot be watched.
var unavailablePhrases = []string{
	"Private video",
	"Video unavailable",
	"This video is not available",
	"This video has been removed",
	"members-only content",
}

func classifyYtdlpError(stderr string, err error) FetchOutcome {
	msg := strings.TrimSpace(stderr)
	for _, phrase := range unavailablePhrases {
		if strings.Contains(msg, phrase) {
			return Hard(ReasonVideoUnavailable, fmt.Errorf("%w: %s", ErrVideoUnavailable, msg))
		}
	}
	if msg == "" {
		return Soft(ReasonFetchFailed, fmt.Errorf("youtube: yt-dlp failed: %w", err))
	}
	return Soft(ReasonFetchFailed, fmt.Errorf("youtube: yt-dlp failed: %w: %s", err, msg))
}

// selectLanguage picks manual tracks over automatic captions and English
// locales over any other; remaining locales are tried in sorted order.
func selectLanguage(info *ytdlpInfo) (lang string, generated bool, formats []ytdlpSubFormat, ok bool) {
	sources := []struct {
		tracks    map[string][]ytdlpSubFormat
		generated bool
	}{
		{info.Subtitles, false},
		{info.AutomaticCaptions, true},
	}

	for _, src := range sources {
		for _, l := range englishLocales {
			if f := src.tracks[l]; len(f) > 0 {
				return l, src.generated, f, true
			}
		}
	}
	for _, src := range sources {
		langs := make([]string, 0, len(src.tracks))
		for l, f := range src.tracks {
			if l == "live_chat" || len(f) == 0 {
				continue
			}
			langs = append(langs, l)
		}
		sort.Strings(langs)
		if len(langs) > 0 {
			return langs[0], src.generated, src.tracks[langs[0]], true
		}
	}
	return "", false, nil, false
}

// selectSubFormat applies formatPriority, then falls back to any format
// that is not an HLS playlist.
func selectSubFormat(formats []ytdlpSubFormat) (ytdlpSubFormat, bool) {
	for _, want := range formatPriority {
		for _, f := range formats {
			if ParseFormat(f.Ext) == want && f.URL != "" {
				return f, true
			}
		}
	}
	for _, f := range formats {
		if ParseFormat(f.Ext) != FormatM3U8 && f.URL != "" {
			return f, true
		}
	}
	return ytdlpSubFormat{}, false
}

func (m *MediaInfoFetcher) path() string {
	if m.Path != "" {
		return m.Path
	}
	return defaultYtdlpPath
}

func (m *MediaInfoFetcher) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
