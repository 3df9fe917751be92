package translate

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiClient translates with a Gemini model
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini API client. baseURL overrides the API host.
func NewGeminiClient(ctx context.Context, apiKey, model, baseURL string, httpClient *http.Client) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// Name returns the backend name
func (g *GeminiClient) Name() string {
	return "gemini"
}

// Translate asks the model for a bare translation
func (g *GeminiClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction(source, target), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini translation failed: %w", err)
	}

	out := cleanOutput(resp.Text())
	if out == "" {
		return "", fmt.Errorf("gemini returned an empty translation")
	}
	return out, nil
}
