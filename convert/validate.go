package convert

import (
	"context"
	"strings"
	"unicode/utf8"
)

// minURLContentLength is the shortest trimmed text, in characters,
// accepted from a URL.
const minURLContentLength = 10

// ValidateURLContent rejects text that is nearly empty or reads like a
// parser or fetch error instead of a document.
func ValidateURLContent(text string) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minURLContentLength {
		return ErrNoContent
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "no element found") ||
		(strings.Contains(lower, "attempt") && strings.Contains(lower, "failed")) {
		return ErrErrorPage
	}
	return nil
}

// BatchItem is one input of ConvertBatch.
type BatchItem struct {
	// Name is reported back unchanged.
	Name   string
	Source string
}

// BatchResult is the outcome of one BatchItem. Exactly one of Result and
// Err is set.
type BatchResult struct {
	Name   string
	Result *Result
	Err    error
}

// ConvertBatch converts items in order. A failing item does not stop the
// batch; cancellation does, and the remaining items report ctx.Err().
func ConvertBatch(ctx context.Context, c Converter, items []BatchItem) []BatchResult {
	results := make([]BatchResult, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchResult{Name: item.Name, Err: err})
			continue
		}
		res, err := c.Convert(ctx, item.Source)
		if err != nil {
			results = append(results, BatchResult{Name: item.Name, Err: err})
			continue
		}
		results = append(results, BatchResult{Name: item.Name, Result: res})
	}
	return results
}
