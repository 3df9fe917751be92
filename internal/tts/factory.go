package tts

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lexiqai/speech-translator/internal/config"
)

// New builds the synthesizer selected by TTS_PROVIDER
func New(cfg *config.Config) (Synthesizer, error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPClientTimeout) * time.Second}

	switch cfg.TTSProvider {
	case config.ProviderGoogle:
		return NewGoogleClient(cfg.GoogleTTSURL, httpClient), nil
	case config.ProviderElevenLabs:
		return NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsBaseURL, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID, httpClient), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITTSModel, cfg.OpenAITTSVoice, httpClient), nil
	case config.ProviderCartesia:
		return NewCartesiaClient(cfg.CartesiaAPIKey, cfg.CartesiaBaseURL, cfg.CartesiaVoiceID, cfg.CartesiaModelID, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
	}
}
