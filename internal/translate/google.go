package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GoogleClient uses the key-less Google Translate web endpoint
type GoogleClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewGoogleClient creates a client for the translate_a/single endpoint
func NewGoogleClient(endpoint string, httpClient *http.Client) *GoogleClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleClient{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// Name returns the backend name
func (g *GoogleClient) Name() string {
	return "google"
}

// Translate sends one request and joins the translated sentences
func (g *GoogleClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google translate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read google translate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	translated, err := parseGTX(body)
	if err != nil {
		return "", err
	}
	if translated == "" {
		return "", fmt.Errorf("google translate returned no translation for %s->%s", source, target)
	}
	return translated, nil
}

// parseGTX reads the nested array answer: [[["translated","original",...],...],...]
func parseGTX(body []byte) (string, error) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("failed to parse google translate response: %w", err)
	}
	if len(root) == 0 {
		return "", fmt.Errorf("empty google translate response")
	}

	var sentences [][]json.RawMessage
	if err := json.Unmarshal(root[0], &sentences); err != nil {
		return "", fmt.Errorf("unexpected google translate response shape: %w", err)
	}

	var b strings.Builder
	for _, s := range sentences {
		if len(s) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(s[0], &part); err != nil {
			continue
		}
		b.WriteString(part)
	}
	return strings.TrimSpace(b.String()), nil
}
