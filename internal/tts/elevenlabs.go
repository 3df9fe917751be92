package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const elevenLabsOutputFormat = "mp3_44100_128"

// ElevenLabsClient implements Synthesizer using the ElevenLabs API
type ElevenLabsClient struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	LanguageCode  string                  `json:"language_code,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// NewElevenLabsClient creates a new ElevenLabs TTS client
func NewElevenLabsClient(apiKey, baseURL, voiceID, modelID string, httpClient *http.Client) *ElevenLabsClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ElevenLabsClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		voiceID:    voiceID,
		modelID:    modelID,
		httpClient: httpClient,
	}
}

// Name returns the backend name
func (e *ElevenLabsClient) Name() string {
	return "elevenlabs"
}

// Synthesize requests MP3 audio for text and writes it to outPath
func (e *ElevenLabsClient) Synthesize(ctx context.Context, text, lang, outPath string) error {
	payload, err := json.Marshal(elevenLabsRequest{
		Text:         text,
		ModelID:      e.modelID,
		LanguageCode: lang,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(e.voiceID), elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("elevenlabs", resp)
	}

	return writeAudio(resp.Body, outPath)
}
