package youtube

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinTranscriptLength is the default minimum transcript length in characters.
const MinTranscriptLength = 50

// Gate rejects decoded text that is not a usable transcript.
type Gate struct {
	// MinLength is the minimum length in characters. Zero means MinTranscriptLength.
	MinLength int
}

// DefaultGate uses MinTranscriptLength.
var DefaultGate = Gate{MinLength: MinTranscriptLength}

// Validate returns ErrEmptyContent, ErrPlaylistContent or ErrContentTooShort
// when text is not a usable transcript, and nil otherwise.
func (g Gate) Validate(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyContent
	}
	if IsPlaylist([]byte(trimmed)) {
		return ErrPlaylistContent
	}

	minLen := g.MinLength
	if minLen <= 0 {
		minLen = MinTranscriptLength
	}
	if n := utf8.RuneCountInString(trimmed); n < minLen {
		return fmt.Errorf("%w: %d characters, want at least %d", ErrContentTooShort, n, minLen)
	}
	return nil
}

// Validate checks text with DefaultGate.
func Validate(text string) error {
	return DefaultGate.Validate(text)
}

// IsPlaylist reports whether body is an HLS playlist rather than subtitles.
func IsPlaylist(body []byte) bool {
	trimmed := bytes.TrimLeft(body, "\ufeff \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("#EXTM3U")) || bytes.Contains(body, []byte("#EXT-X-"))
}
