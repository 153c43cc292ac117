package youtube

import (
	"context"
	"errors"
)

// FailureReason is a stable, machine-checkable failure code.
type FailureReason string

const (
	ReasonCaptionsDisabled FailureReason = "captions_disabled"
	ReasonNoTranscript     FailureReason = "no_transcript"
	ReasonVideoUnavailable FailureReason = "video_unavailable"

	ReasonInvalidURL       FailureReason = "invalid_url"
	ReasonPlaylistReceived FailureReason = "playlist_received"
	ReasonEmptyContent     FailureReason = "empty_content"
	ReasonContentTooShort  FailureReason = "content_too_short"
	ReasonDecodeFailed     FailureReason = "decode_failed"
	ReasonFetchFailed      FailureReason = "fetch_failed"
	ReasonNoTracks         FailureReason = "no_tracks"
	ReasonToolUnavailable  FailureReason = "tool_unavailable"
	ReasonAllTracksFailed  FailureReason = "all_tracks_failed"
	ReasonCanceled         FailureReason = "canceled"
)

// IsCaptionAbsence reports whether r means the video itself has no usable
// captions, so no other strategy can succeed.
func (r FailureReason) IsCaptionAbsence() bool {
	switch r {
	case ReasonCaptionsDisabled, ReasonNoTranscript, ReasonVideoUnavailable:
		return true
	}
	return false
}

// Message returns a human-readable description of r.
func (r FailureReason) Message() string {
	switch r {
	case ReasonCaptionsDisabled:
		return "captions disabled"
	case ReasonNoTranscript:
		return "no transcript available"
	case ReasonVideoUnavailable:
		return "video unavailable or private"
	case ReasonInvalidURL:
		return "could not extract a video ID from the URL"
	case ReasonPlaylistReceived:
		return "received a playlist instead of subtitles"
	case ReasonEmptyContent:
		return "transcript is empty"
	case ReasonContentTooShort:
		return "transcript is too short"
	case ReasonDecodeFailed:
		return "subtitle data could not be decoded"
	case ReasonFetchFailed:
		return "subtitle fetch failed"
	case ReasonNoTracks:
		return "no subtitle tracks offered"
	case ReasonToolUnavailable:
		return "extraction tool unavailable"
	case ReasonAllTracksFailed:
		return "every caption track failed to download"
	case ReasonCanceled:
		return "request canceled"
	case "":
		return "unknown failure"
	}
	return string(r)
}

// OutcomeKind tags a FetchOutcome.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	SoftFailure
	HardFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case SoftFailure:
		return "soft_failure"
	case HardFailure:
		return "hard_failure"
	}
	return "unknown"
}

// FetchOutcome is the result of one strategy. A Success carries the raw
// track; failures carry a reason and the underlying error.
type FetchOutcome struct {
	Kind   OutcomeKind
	Track  *RawSubtitleTrack
	Reason FailureReason
	Err    error
	// Title is the video title when the strategy learned it for free.
	Title string
}

// Fetched wraps a downloaded track in a Success outcome.
func Fetched(track *RawSubtitleTrack) FetchOutcome {
	return FetchOutcome{Kind: Success, Track: track}
}

// Soft returns a failure that lets the next strategy run.
func Soft(reason FailureReason, err error) FetchOutcome {
	return FetchOutcome{Kind: SoftFailure, Reason: reason, Err: err}
}

// Hard returns a failure that is final for the strategy that produced it.
func Hard(reason FailureReason, err error) FetchOutcome {
	return FetchOutcome{Kind: HardFailure, Reason: reason, Err: err}
}

// canceled converts a context error into a soft outcome.
func canceled(ctx context.Context) (FetchOutcome, bool) {
	if err := ctx.Err(); err != nil {
		return Soft(ReasonCanceled, err), true
	}
	return FetchOutcome{}, false
}

// gateReason maps a quality gate error onto a failure reason.
func gateReason(err error) FailureReason {
	switch {
	case errors.Is(err, ErrPlaylistContent):
		return ReasonPlaylistReceived
	case errors.Is(err, ErrEmptyContent):
		return ReasonEmptyContent
	case errors.Is(err, ErrContentTooShort):
		return ReasonContentTooShort
	}
	return ReasonDecodeFailed
}

// Attempt records what one strategy returned.
type Attempt struct {
	Fetcher string
	Kind    OutcomeKind
	Reason  FailureReason
	Err     error
}
