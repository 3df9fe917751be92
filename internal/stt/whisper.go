package stt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"

	"github.com/lexiqai/speech-translator/internal/audio"
)

// WhisperClient implements Recognizer using the OpenAI transcription API
type WhisperClient struct {
	client *openai.Client
	model  string
}

// NewWhisperClient creates a transcription client. baseURL may point at any
// OpenAI-compatible server; empty uses the public API.
func NewWhisperClient(apiKey, baseURL, model string, httpClient *http.Client) *WhisperClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name returns the backend name
func (w *WhisperClient) Name() string {
	return "whisper"
}

// Transcribe uploads the clip. Whisper takes ISO-639-1 codes, so the region is dropped.
func (w *WhisperClient) Transcribe(ctx context.Context, clip *audio.NormalizedAudio, locale string) (Transcript, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: clip.Path,
		Language: baseLanguage(locale),
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("whisper transcription failed: %w", err)
	}

	return Transcript{Text: joinAlternatives([]string{resp.Text})}, nil
}

// baseLanguage reduces a locale such as "en-IN" to "en"
func baseLanguage(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return locale
	}
	base, _ := tag.Base()
	return base.String()
}
