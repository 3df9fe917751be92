package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// ErrEmptyAudio is returned when a backend answers without audio
var ErrEmptyAudio = errors.New("synthesized audio is empty")

// Synthesizer is the interface for text-to-speech backends.
// Synthesize writes an MP3 rendition of text to outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, outPath string) error
	Name() string
}

// writeAudio streams r into a new file at outPath
func writeAudio(r io.Reader, outPath string) error {
	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if n == 0 {
		return ErrEmptyAudio
	}
	return nil
}

// statusError describes a non-2xx provider response, keeping a short body excerpt
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%s API returned status %d", provider, resp.StatusCode)
	}
	return fmt.Errorf("%s API returned status %d: %s", provider, resp.StatusCode, msg)
}
