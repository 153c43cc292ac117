package storage

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxFilenameLength is the longest name Sanitize returns, in characters.
const MaxFilenameLength = 255

const unnamedFile = "unnamed_file"

var reservedChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Sanitize turns an attachment name into a file name that is safe on
// Windows and Unix file systems. URLs are replaced by a short synthetic
// name first. Sanitize is idempotent.
func Sanitize(name string) string {
	if hasURLScheme(name) {
		name = urlFilename(name)
	}

	name = reservedChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" {
		return unnamedFile
	}

	if utf8.RuneCountInString(name) > MaxFilenameLength {
		name = truncateKeepingExt(name)
	}
	return name
}

func hasURLScheme(s string) bool {
	for _, scheme := range []string{"http://", "https://", "ftp://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}

func urlFilename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "url_content.txt"
	}

	host := u.Host
	if strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be") {
		var id string
		if strings.Contains(host, "youtu.be") {
			id = strings.Trim(u.Path, "/")
		} else if strings.Contains(u.RawQuery, "v=") {
			id = u.Query().Get("v")
		}
		if id != "" {
			return "youtube_" + id + ".txt"
		}
		return "youtube_video.txt"
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) > 0 {
		return segments[len(segments)-1]
	}
	return strings.ReplaceAll(host, ".", "_") + ".txt"
}

// truncateKeepingExt shortens name to MaxFilenameLength characters,
// keeping its extension when there is one.
func truncateKeepingExt(name string) string {
	ext := path.Ext(name)
	if ext == name || utf8.RuneCountInString(ext) >= MaxFilenameLength {
		ext = ""
	}
	base := []rune(strings.TrimSuffix(name, ext))
	keep := MaxFilenameLength - utf8.RuneCountInString(ext)
	if keep < len(base) {
		base = base[:keep]
	}
	return strings.TrimRight(string(base), ". ") + ext
}
