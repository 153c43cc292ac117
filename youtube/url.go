// Package youtube turns YouTube URLs into plain-text transcripts.
//
// An Orchestrator runs a list of Fetcher strategies in order (yt-dlp media
// info first, the public captions endpoints second), decodes whatever
// subtitle format the winning strategy downloaded, and checks the result
// with a Gate before returning it.
package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// VideoID is a YouTube video identifier.
type VideoID string

var (
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	shortLinkPattern = regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]+)`)
	pathIDPattern    = regexp.MustCompile(`youtube\.com/(?:shorts|embed|live|v)/([A-Za-z0-9_-]+)`)
)

// IsYouTubeURL reports whether s mentions one of the YouTube hosts.
func IsYouTubeURL(s string) bool {
	return strings.Contains(s, "youtube.com") || strings.Contains(s, "youtu.be")
}

// WatchURL returns the canonical watch URL for id.
func WatchURL(id VideoID) string {
	return "https://www.youtube.com/watch?v=" + string(id)
}

// Normalize extracts the video identifier from a youtu.be short link or the
// v parameter of a youtube.com URL and returns it with the canonical watch
// URL. Every other query parameter is dropped.
func Normalize(input string) (VideoID, string, error) {
	s := strings.TrimSpace(input)

	var id string
	switch {
	case strings.Contains(s, "youtu.be"):
		if m := shortLinkPattern.FindStringSubmatch(s); m != nil {
			id = m[1]
		}
	case strings.Contains(s, "youtube.com"):
		if u, err := url.Parse(s); err == nil {
			id = u.Query().Get("v")
		}
		if id == "" {
			if m := pathIDPattern.FindStringSubmatch(s); m != nil {
				id = m[1]
			}
		}
	}

	if id == "" || !videoIDPattern.MatchString(id) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, input)
	}
	return VideoID(id), WatchURL(VideoID(id)), nil
}
