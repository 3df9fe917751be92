// Package translate turns recognized text into the target language.
package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/speech-translator/internal/config"
)

// Translator is the interface for machine translation backends.
// There is no caching and no fallback: every call reaches the backend.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
	Name() string
}

// New builds the translator selected by TRANSLATE_PROVIDER
func New(ctx context.Context, cfg *config.Config) (Translator, error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPClientTimeout) * time.Second}

	switch cfg.TranslateProvider {
	case config.ProviderGoogle:
		return NewGoogleClient(cfg.GoogleTranslateURL, httpClient), nil
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, httpClient)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITranslateModel, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown translate provider %q", cfg.TranslateProvider)
	}
}

// instruction is the prompt shared by the LLM-backed translators
func instruction(source, target string) string {
	return fmt.Sprintf(
		"Translate the user's text from language code %q to language code %q. "+
			"Reply with the translation only, without quotes, notes or transliteration.",
		source, target,
	)
}

func cleanOutput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"“”")
	return strings.TrimSpace(s)
}
