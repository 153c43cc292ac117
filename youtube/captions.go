package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	httpclient "markserve/http"
)

const (
	defaultTimedtextURL = "https://www.youtube.com/api/timedtext"
	defaultWatchPageURL = "https://www.youtube.com/watch"
)

// playerResponseMarker precedes the JSON player response in watch pages.
var playerResponseMarker = []byte("ytInitialPlayerResponse = ")

// CaptionsAPIFetcher reads captions from YouTube's public endpoints. It first
// probes the timedtext endpoint for English, then lists the tracks embedded
// in the watch page and tries each in turn.
type CaptionsAPIFetcher struct {
	HTTP *httpclient.Client
	Gate Gate
	// TimedtextURL and WatchPageURL override the YouTube endpoints.
	TimedtextURL string
	WatchPageURL string
	Logger       *slog.Logger
}

// NewCaptionsAPIFetcher creates a fetcher using client.
func NewCaptionsAPIFetcher(client *httpclient.Client) *CaptionsAPIFetcher {
	return &CaptionsAPIFetcher{
		HTTP:         client,
		Gate:         DefaultGate,
		TimedtextURL: defaultTimedtextURL,
		WatchPageURL: defaultWatchPageURL,
		Logger:       slog.Default(),
	}
}

// Name implements Fetcher.
func (c *CaptionsAPIFetcher) Name() string { return "captions-api" }

// captionTrack is one entry of the watch page's caption track list.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

func (t captionTrack) generated() bool { return t.Kind == "asr" }

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails struct {
		Title string `json:"title"`
	} `json:"videoDetails"`
}

// FetchTranscript implements Fetcher.
func (c *CaptionsAPIFetcher) FetchTranscript(ctx context.Context, id VideoID) FetchOutcome {
	log := c.logger().With(slog.String("video_id", string(id)), slog.String("fetcher", c.Name()))
	if c.HTTP == nil {
		return Soft(ReasonFetchFailed, errors.New("youtube: no http client configured"))
	}

	if out, ok := c.probeTimedtext(ctx, log, id); ok {
		return out
	}
	if out, done := canceled(ctx); done {
		return out
	}

	player, out, ok := c.playerResponse(ctx, id)
	if !ok {
		return out
	}

	status := player.PlayabilityStatus
	switch status.Status {
	case "ERROR", "LOGIN_REQUIRED", "UNPLAYABLE":
		return Hard(ReasonVideoUnavailable, fmt.Errorf("%w: %s: %s", ErrVideoUnavailable, status.Status, status.Reason))
	}

	if player.Captions == nil {
		return Hard(ReasonCaptionsDisabled, ErrCaptionsDisabled)
	}
	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return Hard(ReasonNoTranscript, ErrNoTranscript)
	}

	available := make([]string, 0, len(tracks))
	for _, t := range tracks {
		kind := "manual"
		if t.generated() {
			kind = "auto"
		}
		available = append(available, fmt.Sprintf("%s(%s)", t.LanguageCode, kind))
	}
	log.Info("youtube: caption tracks available", slog.Any("tracks", available))

	var lastErr error
	for _, t := range orderTracks(tracks) {
		if out, done := canceled(ctx); done {
			return out
		}
		track, err := c.downloadTrack(ctx, t)
		if err != nil {
			log.Debug("youtube: caption track failed",
				slog.String("lang", t.LanguageCode),
				slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		out := Fetched(track)
		out.Title = player.VideoDetails.Title
		return out
	}
	return Hard(ReasonAllTracksFailed, fmt.Errorf("youtube: %d caption tracks failed: %w", len(tracks), lastErr))
}

// probeTimedtext asks the timedtext endpoint for each English locale. It is
// best effort: any failure falls through to the watch page.
func (c *CaptionsAPIFetcher) probeTimedtext(ctx context.Context, log *slog.Logger, id VideoID) (FetchOutcome, bool) {
	base := c.TimedtextURL
	if base == "" {
		base = defaultTimedtextURL
	}
	for _, lang := range englishLocales {
		if ctx.Err() != nil {
			return FetchOutcome{}, false
		}
		params := url.Values{}
		params.Set("v", string(id))
		params.Set("lang", lang)
		params.Set("fmt", string(FormatJSON3))

		resp, err := c.HTTP.Get(ctx, base+"?"+params.Encode())
		if err != nil || len(bytes.TrimSpace(resp.Body)) == 0 {
			continue
		}
		track := &RawSubtitleTrack{
			Format:   FormatJSON3,
			URL:      resp.URL,
			Content:  resp.Body,
			Language: lang,
		}
		if err := c.check(*track); err != nil {
			log.Debug("youtube: timedtext probe rejected", slog.String("lang", lang), slog.String("error", err.Error()))
			continue
		}
		return Fetched(track), true
	}
	return FetchOutcome{}, false
}

// playerResponse downloads the watch page and extracts the embedded player
// response.
func (c *CaptionsAPIFetcher) playerResponse(ctx context.Context, id VideoID) (*playerResponse, FetchOutcome, bool) {
	base := c.WatchPageURL
	if base == "" {
		base = defaultWatchPageURL
	}
	params := url.Values{}
	params.Set("v", string(id))
	params.Set("hl", "en")

	resp, err := c.HTTP.Get(ctx, base+"?"+params.Encode())
	if err != nil {
		if out, done := canceled(ctx); done {
			return nil, out, false
		}
		if httpclient.StatusCode(err) == 404 {
			return nil, Hard(ReasonVideoUnavailable, fmt.Errorf("%w: watch page not found", ErrVideoUnavailable)), false
		}
		return nil, Soft(ReasonFetchFailed, fmt.Errorf("youtube: fetch watch page: %w", err)), false
	}

	player, err := parsePlayerResponse(resp.Body)
	if err != nil {
		return nil, Soft(ReasonDecodeFailed, err), false
	}
	return player, FetchOutcome{}, true
}

func parsePlayerResponse(page []byte) (*playerResponse, error) {
	i := bytes.Index(page, playerResponseMarker)
	if i < 0 {
		return nil, errors.New("youtube: player response not found in watch page")
	}
	rest := page[i+len(playerResponseMarker):]
	start := bytes.IndexByte(rest, '{')
	if start < 0 {
		return nil, errors.New("youtube: player response not found in watch page")
	}

	var player playerResponse
	if err := json.NewDecoder(bytes.NewReader(rest[start:])).Decode(&player); err != nil {
		return nil, fmt.Errorf("youtube: parse player response: %w", err)
	}
	return &player, nil
}

// orderTracks puts the preferred English track first and keeps the rest in
// page order.
func orderTracks(tracks []captionTrack) []captionTrack {
	pick := -1
	for _, lang := range englishLocales {
		for i, t := range tracks {
			if t.LanguageCode == lang {
				pick = i
				break
			}
		}
		if pick >= 0 {
			break
		}
	}
	if pick < 0 {
		for i, t := range tracks {
			if strings.HasPrefix(t.LanguageCode, "en") {
				pick = i
				break
			}
		}
	}
	if pick <= 0 {
		return tracks
	}

	ordered := make([]captionTrack, 0, len(tracks))
	ordered = append(ordered, tracks[pick])
	ordered = append(ordered, tracks[:pick]...)
	return append(ordered, tracks[pick+1:]...)
}

func (c *CaptionsAPIFetcher) downloadTrack(ctx context.Context, t captionTrack) (*RawSubtitleTrack, error) {
	u, err := url.Parse(t.BaseURL)
	if err != nil || t.BaseURL == "" {
		return nil, fmt.Errorf("youtube: bad caption track url %q", t.BaseURL)
	}
	q := u.Query()
	q.Set("fmt", string(FormatJSON3))
	u.RawQuery = q.Encode()

	resp, err := c.HTTP.Get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	track := &RawSubtitleTrack{
		Format:      FormatJSON3,
		URL:         u.String(),
		Content:     resp.Body,
		Language:    t.LanguageCode,
		IsGenerated: t.generated(),
	}
	if err := c.check(*track); err != nil {
		return nil, err
	}
	return track, nil
}

// check decodes track and runs it through the gate so a bad track can be
// skipped in favor of the next one.
func (c *CaptionsAPIFetcher) check(track RawSubtitleTrack) error {
	text, err := Decode(track)
	if err != nil {
		return err
	}
	return c.Gate.Validate(text)
}

func (c *CaptionsAPIFetcher) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
