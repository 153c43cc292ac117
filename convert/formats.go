package convert

import (
	"path/filepath"
	"sort"
	"strings"
)

// SupportedFormats maps file extensions to MIME types.
var SupportedFormats = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"rtf":  "text/rtf",

	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"csv":  "text/csv",

	"json": "application/json",
	"xml":  "application/xml",

	"html": "text/html",
	"htm":  "text/html",

	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
	"svg":  "image/svg+xml",

	"mp3": "audio/mpeg",
	"wav": "audio/wav",
	"m4a": "audio/mp4",
	"ogg": "audio/ogg",
	"aac": "audio/aac",

	"zip": "application/zip",
	"rar": "application/x-rar-compressed",
	"7z":  "application/x-7z-compressed",
	"tar": "application/x-tar",
	"gz":  "application/gzip",

	"txt": "text/plain",
	"md":  "text/markdown",

	"msg": "application/vnd.ms-outlook",
	"eml": "message/rfc822",
}

// Categories groups SupportedFormats for display.
var Categories = map[string][]string{
	"documents":     {"pdf", "doc", "docx", "rtf", "txt", "md"},
	"presentations": {"ppt", "pptx"},
	"spreadsheets":  {"xls", "xlsx", "csv"},
	"data":          {"json", "xml"},
	"web":           {"html", "htm"},
	"images":        {"jpg", "jpeg", "png", "gif", "bmp", "webp", "svg"},
	"audio":         {"mp3", "wav", "m4a", "ogg", "aac"},
	"archives":      {"zip", "rar", "7z", "tar", "gz"},
	"email":         {"msg", "eml"},
	"youtube":       {"YouTube URLs (transcript extraction)"},
}

// FormatNames returns the supported extensions in sorted order.
func FormatNames() []string {
	names := make([]string, 0, len(SupportedFormats))
	for ext := range SupportedFormats {
		names = append(names, ext)
	}
	sort.Strings(names)
	return names
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsSupported reports whether name has a supported extension.
func IsSupported(name string) bool {
	_, ok := SupportedFormats[Ext(name)]
	return ok
}
