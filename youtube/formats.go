package youtube

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SubtitleFormat is the wire format of a downloaded subtitle track.
type SubtitleFormat string

const (
	// FormatJSON3 is YouTube's timed-event JSON format.
	FormatJSON3 SubtitleFormat = "json3"
	// FormatSRV1 to FormatSRV3 are YouTube's XML cue formats.
	FormatSRV1 SubtitleFormat = "srv1"
	FormatSRV2 SubtitleFormat = "srv2"
	FormatSRV3 SubtitleFormat = "srv3"
	// FormatVTT is WebVTT.
	FormatVTT SubtitleFormat = "vtt"
	// FormatM3U8 is an HLS playlist. It is never decoded.
	FormatM3U8 SubtitleFormat = "m3u8"
	// FormatUnknown is passed through as plain text.
	FormatUnknown SubtitleFormat = "unknown"
)

// formatPriority is the order in which sub-formats are preferred when a
// track is offered in several.
var formatPriority = []SubtitleFormat{FormatJSON3, FormatSRV3, FormatSRV2, FormatSRV1, FormatVTT}

// ParseFormat maps a file extension or fmt parameter onto a SubtitleFormat.
func ParseFormat(ext string) SubtitleFormat {
	switch f := SubtitleFormat(strings.ToLower(strings.TrimPrefix(ext, "."))); f {
	case FormatJSON3, FormatSRV1, FormatSRV2, FormatSRV3, FormatVTT, FormatM3U8:
		return f
	}
	return FormatUnknown
}

// RawSubtitleTrack is a downloaded subtitle body and what is known about it.
type RawSubtitleTrack struct {
	Format  SubtitleFormat
	URL     string
	Content []byte
	// Language is the BCP-47 tag of the track.
	Language string
	// IsGenerated is true for automatic (speech recognition) captions.
	IsGenerated bool
}

// Decode converts a track to plain text with runs of whitespace collapsed.
func Decode(track RawSubtitleTrack) (string, error) {
	format := track.Format
	if format == "" || format == FormatUnknown {
		format = sniffFormat(track.Content)
	}

	var text string
	switch format {
	case FormatJSON3:
		t, err := decodeJSON3(track.Content)
		if err != nil {
			return "", err
		}
		text = t
	case FormatSRV1, FormatSRV2, FormatSRV3:
		text = decodeSRV(string(track.Content))
	case FormatVTT:
		text = decodeVTT(string(track.Content))
	case FormatM3U8:
		return "", ErrPlaylistContent
	default:
		text = string(track.Content)
	}
	return collapseWhitespace(text), nil
}

// sniffFormat recognizes bodies whose format tag was missing.
func sniffFormat(content []byte) SubtitleFormat {
	trimmed := bytes.TrimLeft(content, "\ufeff \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("WEBVTT")) {
		return FormatVTT
	}
	return FormatUnknown
}

type json3Document struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func decodeJSON3(content []byte) (string, error) {
	var doc json3Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("youtube: parse json3: %w", err)
	}

	parts := make([]string, 0, len(doc.Events))
	for _, event := range doc.Events {
		for _, seg := range event.Segs {
			parts = append(parts, strings.TrimSpace(seg.UTF8))
		}
	}
	return strings.Join(parts, " "), nil
}

var (
	srvCuePattern = regexp.MustCompile(`(?s)<text[^>]*>(.*?)</text>`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// entityPairs is applied in order, so "&amp;lt;" ends up as "<".
var entityPairs = [][2]string{
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
}

func decodeEntities(s string) string {
	for _, p := range entityPairs {
		s = strings.ReplaceAll(s, p[0], p[1])
	}
	return s
}

func decodeSRV(content string) string {
	var parts []string
	for _, m := range srvCuePattern.FindAllStringSubmatch(content, -1) {
		text := decodeEntities(m[1])
		text = tagPattern.ReplaceAllString(text, "")
		text = strings.TrimSpace(text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

var (
	cueIndexPattern    = regexp.MustCompile(`^\d+$`)
	headerFieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z-]*:\s`)
)

// vttBlockKeywords start blocks that carry no cue text.
var vttBlockKeywords = []string{"NOTE", "STYLE", "REGION"}

func isVTTMetadataBlock(line string) bool {
	for _, kw := range vttBlockKeywords {
		if line == kw || strings.HasPrefix(line, kw+" ") || strings.HasPrefix(line, kw+"\t") {
			return true
		}
	}
	return false
}

func decodeVTT(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var parts []string
	inHeader, skipBlock, blockStart := false, false, true
	for _, raw := range lines {
		line := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		first := blockStart
		blockStart = false

		switch {
		case line == "":
			inHeader, skipBlock, blockStart = false, false, true
			continue
		case skipBlock:
			continue
		case strings.HasPrefix(line, "WEBVTT"):
			inHeader = true
			continue
		case first && isVTTMetadataBlock(line):
			// Runs to the next blank line.
			skipBlock = true
			continue
		case inHeader && headerFieldPattern.MatchString(line):
			// "Kind: captions", "Language: en" and similar.
			continue
		case strings.Contains(line, "-->"), cueIndexPattern.MatchString(line):
			inHeader = false
			continue
		}

		inHeader = false
		line = decodeEntities(tagPattern.ReplaceAllString(line, ""))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
