package audio

import (
	"mime"
	"net/http"
	"strings"
)

// DefaultFormat is assumed when neither the bytes nor the client say otherwise
const DefaultFormat = "webm"

var mimeFormats = map[string]string{
	"audio/webm":      "webm",
	"video/webm":      "webm",
	"audio/ogg":       "ogg",
	"application/ogg": "ogg",
	"audio/opus":      "ogg",
	"audio/wav":       "wav",
	"audio/wave":      "wav",
	"audio/x-wav":     "wav",
	"audio/vnd.wave":  "wav",
	"audio/mpeg":      "mp3",
	"audio/mp3":       "mp3",
	"audio/mp4":       "mp4",
	"audio/x-m4a":     "mp4",
	"video/mp4":       "mp4",
	"audio/aiff":      "aiff",
	"audio/x-aiff":    "aiff",
	"audio/flac":      "flac",
	"audio/x-flac":    "flac",
	"audio/basic":     "au",
	"audio/amr":       "amr",
	"audio/aac":       "aac",
	"audio/3gpp":      "3gp",
	"video/3gpp":      "3gp",
}

// extensionFormats are container names seen as file extensions that no
// MIME mapping produces
var extensionFormats = []string{"m4a", "opus", "oga", "aac", "weba", "mka"}

var knownFormats = func() map[string]bool {
	m := make(map[string]bool)
	for _, f := range mimeFormats {
		m[f] = true
	}
	for _, f := range extensionFormats {
		m[f] = true
	}
	return m
}()

// DetectFormat picks a container hint for an upload: sniffed bytes first,
// then the declared content type or format name, then fallback.
// The hint only names the scratch file; ffmpeg probes the real container.
func DetectFormat(data []byte, declared, fallback string) string {
	if f, ok := FormatFromMIME(http.DetectContentType(data)); ok {
		return f
	}
	if f, ok := FormatFromMIME(declared); ok {
		return f
	}
	if f := strings.ToLower(strings.TrimSpace(fallback)); f != "" {
		return f
	}
	return DefaultFormat
}

// FormatFromMIME maps a MIME type (parameters allowed) or a bare format name
// onto a container hint.
func FormatFromMIME(contentType string) (string, bool) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		return "", false
	}
	if knownFormats[contentType] {
		return contentType, true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	f, ok := mimeFormats[mediaType]
	return f, ok
}
