package stt

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lexiqai/speech-translator/internal/config"
)

// New builds the recognizer selected by STT_PROVIDER
func New(ctx context.Context, cfg *config.Config) (Recognizer, error) {
	switch cfg.STTProvider {
	case config.ProviderGoogle:
		client, err := NewGoogleClient(ctx, cfg.GoogleCredentialsFile, cfg.GoogleSpeechModel)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderDeepgram:
		return NewDeepgramClient(cfg.DeepgramAPIKey, cfg.DeepgramModel), nil
	case config.ProviderWhisper:
		httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPClientTimeout) * time.Second}
		return NewWhisperClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITranscribeModel, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}
}
