package markserve

import (
	"markserve/convert"
	"markserve/internal/retry"
	"markserve/storage"
	"markserve/youtube"
)

// Error types exported from sub-packages.
//
// From youtube:
//   - youtube.TranscriptError: every strategy failed or the video has no captions
//
// From storage:
//   - storage.StorageError: a session or root operation failed
//   - storage.RootError: a path was refused as storage root
//
// From convert:
//   - convert.ConversionError: a document could not be converted
type (
	// TranscriptError wraps errors during transcript extraction.
	TranscriptError = youtube.TranscriptError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
	// RootError explains why a storage root was refused.
	RootError = storage.RootError
	// ConversionError wraps document conversion failures.
	ConversionError = convert.ConversionError
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrInvalidURL indicates no video ID could be extracted from a URL.
	ErrInvalidURL = youtube.ErrInvalidURL
	// ErrYtdlpNotInstalled indicates yt-dlp binary was not found.
	ErrYtdlpNotInstalled = youtube.ErrYtdlpNotInstalled
	// ErrCaptionsDisabled indicates the video's captions are turned off.
	ErrCaptionsDisabled = youtube.ErrCaptionsDisabled
	// ErrNoTranscript indicates the video has no caption track.
	ErrNoTranscript = youtube.ErrNoTranscript
	// ErrVideoUnavailable indicates the video is private or removed.
	ErrVideoUnavailable = youtube.ErrVideoUnavailable

	// Storage errors
	ErrNotFound          = storage.ErrNotFound
	ErrRootNotConfigured = storage.ErrRootNotConfigured
	ErrLockTimeout       = storage.ErrLockTimeout

	// Conversion errors
	ErrUnsupportedFormat = convert.ErrUnsupportedFormat
	ErrNoContent         = convert.ErrNoContent
)

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
