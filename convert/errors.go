package convert

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat indicates no converter handles the source's format.
	ErrUnsupportedFormat = errors.New("convert: unsupported format")
	// ErrEmptySource indicates an empty path or URL.
	ErrEmptySource = errors.New("convert: empty source")
	// ErrNoContent indicates the conversion produced (almost) no text.
	ErrNoContent = errors.New("convert: no content extracted")
	// ErrErrorPage indicates the converted text looks like an error message
	// rather than the document.
	ErrErrorPage = errors.New("convert: unable to extract content")
)

// ConversionError wraps a failure with the source being converted.
type ConversionError struct {
	Source string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Source, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
