package stt

import (
	"context"
	"strings"

	"github.com/lexiqai/speech-translator/internal/audio"
)

// Transcript is the outcome of recognizing one clip
type Transcript struct {
	// Text is the recognized text. Empty means the audio held no intelligible speech.
	Text string

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64
}

// Recognized reports whether any speech was recognized
func (t Transcript) Recognized() bool {
	return strings.TrimSpace(t.Text) != ""
}

// Recognizer is the interface for speech-to-text backends.
//
// Implementations return an empty Transcript with a nil error when the service
// answered but found no speech, and a non-nil error only when the service
// itself could not be used.
type Recognizer interface {
	// Transcribe recognizes a normalized clip in the given locale ("en-IN", "fr")
	Transcribe(ctx context.Context, clip *audio.NormalizedAudio, locale string) (Transcript, error)

	// Name identifies the backend in logs and metrics
	Name() string
}

// Locale derives the recognition locale for lang. Languages listed in
// regionLanguages get "-<region>" appended; others pass through unchanged.
func Locale(lang string, regionLanguages []string, region string) string {
	lang = strings.TrimSpace(lang)
	if region == "" || strings.Contains(lang, "-") {
		return lang
	}
	for _, l := range regionLanguages {
		if strings.EqualFold(strings.TrimSpace(l), lang) {
			return lang + "-" + strings.ToUpper(region)
		}
	}
	return lang
}

// joinAlternatives concatenates the best alternative of each result segment
func joinAlternatives(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
