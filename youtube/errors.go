package youtube

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for transcript acquisition.
var (
	// ErrInvalidURL indicates no video identifier could be extracted.
	ErrInvalidURL = errors.New("youtube: invalid URL")
	// ErrYtdlpNotInstalled indicates the yt-dlp binary was not found.
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")

	// ErrCaptionsDisabled indicates the uploader disabled captions.
	ErrCaptionsDisabled = errors.New("youtube: captions are disabled for this video")
	// ErrNoTranscript indicates the video has no caption track at all.
	ErrNoTranscript = errors.New("youtube: no transcripts found for this video")
	// ErrVideoUnavailable indicates the video is private, removed or blocked.
	ErrVideoUnavailable = errors.New("youtube: video is unavailable or private")

	// ErrEmptyContent indicates the decoded transcript is blank.
	ErrEmptyContent = errors.New("youtube: empty transcript")
	// ErrContentTooShort indicates the transcript is below the minimum length.
	ErrContentTooShort = errors.New("youtube: transcript too short")
	// ErrPlaylistContent indicates an HLS playlist was served instead of captions.
	ErrPlaylistContent = errors.New("youtube: received HLS playlist instead of subtitles")
	// ErrNoFetchers indicates the orchestrator has no strategies configured.
	ErrNoFetchers = errors.New("youtube: no transcript fetchers configured")
)

// TranscriptError is returned when every strategy failed or a strategy
// reported that the video has no captions at all.
//
//	var terr *youtube.TranscriptError
//	if errors.As(err, &terr) && terr.Reason.IsCaptionAbsence() {
//		// nothing to retry
//	}
type TranscriptError struct {
	VideoID VideoID
	// Reason is the reason of the last observed failure.
	Reason FailureReason
	// Attempts records each strategy tried, in order.
	Attempts []Attempt
	Err      error
}

func (e *TranscriptError) Error() string {
	var b strings.Builder
	b.WriteString("youtube: transcript")
	if e.VideoID != "" {
		fmt.Fprintf(&b, " for %s", e.VideoID)
	}
	fmt.Fprintf(&b, ": %s", e.Reason.Message())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TranscriptError) Unwrap() error { return e.Err }
