// Package apperr classifies errors from the domain packages into the kinds
// and status codes reported by the HTTP and MCP surfaces.
package apperr

import (
	"context"
	"errors"
	"net/http"

	"markserve/convert"
	httpclient "markserve/http"
	"markserve/storage"
	"markserve/youtube"
)

// Kind is a broad error category.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindCaptionsUnavailable Kind = "captions_unavailable"
	KindTransientFetch      Kind = "transient_fetch_failure"
	KindConfiguration       Kind = "configuration"
	KindStorageIO           Kind = "storage_io"
	KindNotFound            Kind = "not_found"
	KindConversionFailed    Kind = "conversion_failed"
	KindInternal            Kind = "internal"
)

// Status returns the HTTP status code for k.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput, KindConfiguration:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Error is a classified error. Reason is a stable machine-readable code.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int { return e.Kind.Status() }

// New creates a classified error.
func New(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Classify maps err onto a Kind and reason. It returns nil for nil and an
// existing *Error unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return New(KindTransientFetch, "canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return New(KindTransientFetch, "timeout", err)
	}

	var terr *youtube.TranscriptError
	if errors.As(err, &terr) {
		return classifyTranscript(err, terr)
	}
	if errors.Is(err, youtube.ErrInvalidURL) {
		return New(KindInvalidInput, string(youtube.ReasonInvalidURL), err)
	}

	if k := classifyStorage(err); k != nil {
		return k
	}

	switch {
	case errors.Is(err, convert.ErrEmptySource):
		return New(KindInvalidInput, "missing_source", err)
	case errors.Is(err, convert.ErrUnsupportedFormat):
		return New(KindConversionFailed, "unsupported_format", err)
	case errors.Is(err, convert.ErrNoContent):
		return New(KindConversionFailed, "no_content", err)
	case errors.Is(err, convert.ErrErrorPage):
		return New(KindConversionFailed, "error_page", err)
	}

	var rl *httpclient.RateLimitError
	if errors.As(err, &rl) {
		return New(KindTransientFetch, "rate_limited", err)
	}
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		return New(KindTransientFetch, "circuit_open", err)
	}
	if errors.Is(err, httpclient.ErrInvalidURL) {
		return New(KindInvalidInput, "invalid_url", err)
	}
	if code := httpclient.StatusCode(err); code != 0 {
		return New(KindConversionFailed, "upstream_status", err)
	}
	if errors.Is(err, httpclient.ErrRequestFailed) {
		return New(KindTransientFetch, "request_failed", err)
	}

	var convErr *convert.ConversionError
	if errors.As(err, &convErr) {
		return New(KindConversionFailed, "conversion_failed", err)
	}
	return New(KindInternal, "internal", err)
}

func classifyTranscript(err error, terr *youtube.TranscriptError) *Error {
	reason := string(terr.Reason)
	switch {
	case terr.Reason == youtube.ReasonInvalidURL:
		return New(KindInvalidInput, reason, err)
	case terr.Reason.IsCaptionAbsence():
		return New(KindCaptionsUnavailable, reason, err)
	case reason == "":
		reason = string(youtube.ReasonFetchFailed)
	}
	return New(KindTransientFetch, reason, err)
}

func classifyStorage(err error) *Error {
	var rootErr *storage.RootError
	if errors.As(err, &rootErr) {
		switch {
		case errors.Is(rootErr.Problem, storage.ErrCannotCreate):
			return New(KindInvalidInput, "cannot_create", err)
		case errors.Is(rootErr.Problem, storage.ErrNotDirectory):
			return New(KindInvalidInput, "not_directory", err)
		default:
			return New(KindInvalidInput, "not_writable", err)
		}
	}

	switch {
	case errors.Is(err, storage.ErrRootNotConfigured):
		return New(KindConfiguration, "storage_not_configured", err)
	case errors.Is(err, storage.ErrMissingIdentifier):
		return New(KindInvalidInput, "missing_chat_id", err)
	case errors.Is(err, storage.ErrNotFound):
		return New(KindNotFound, "session_not_found", err)
	case errors.Is(err, storage.ErrLockTimeout):
		return New(KindStorageIO, "lock_timeout", err)
	}

	var storErr *storage.StorageError
	if errors.As(err, &storErr) {
		return New(KindStorageIO, "storage_io", err)
	}
	return nil
}
