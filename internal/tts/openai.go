package tts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Synthesizer using the OpenAI speech API.
// The model picks the language from the text itself.
type OpenAIClient struct {
	client *openai.Client
	model  string
	voice  string
}

// NewOpenAIClient creates a speech client. baseURL may point at any
// OpenAI-compatible server; empty uses the public API.
func NewOpenAIClient(apiKey, baseURL, model, voice string, httpClient *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		voice:  voice,
	}
}

// Name returns the backend name
func (o *OpenAIClient) Name() string {
	return "openai"
}

// Synthesize requests MP3 speech and writes it to outPath
func (o *OpenAIClient) Synthesize(ctx context.Context, text, lang, outPath string) error {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	return writeAudio(resp, outPath)
}
