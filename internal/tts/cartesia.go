package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const cartesiaVersion = "2024-06-10"

// CartesiaClient implements Synthesizer using Cartesia's bytes endpoint
type CartesiaClient struct {
	apiKey     string
	apiURL     string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

// CartesiaRequest represents the request payload for Cartesia TTS API
type CartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        CartesiaVoice        `json:"voice"`
	OutputFormat CartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
}

// CartesiaVoice selects a voice by id
type CartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

// CartesiaOutputFormat describes the encoded container Cartesia returns
type CartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// NewCartesiaClient creates a new Cartesia TTS client
func NewCartesiaClient(apiKey, baseURL, voiceID, modelID string, httpClient *http.Client) *CartesiaClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CartesiaClient{
		apiKey:     apiKey,
		apiURL:     baseURL + "/tts/bytes",
		voiceID:    voiceID,
		modelID:    modelID,
		httpClient: httpClient,
	}
}

// Name returns the backend name
func (c *CartesiaClient) Name() string {
	return "cartesia"
}

// Synthesize converts text to MP3 and writes it to outPath
func (c *CartesiaClient) Synthesize(ctx context.Context, text, lang, outPath string) error {
	reqBody := CartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice: CartesiaVoice{
			Mode: "id",
			ID:   c.voiceID,
		},
		OutputFormat: CartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    128000,
		},
		Language: lang,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("cartesia", resp)
	}

	return writeAudio(resp.Body, outPath)
}
