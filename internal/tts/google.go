package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxChunkRunes is the longest text the translate_tts endpoint accepts per request
const maxChunkRunes = 100

// GoogleClient uses the key-less Google Translate TTS endpoint.
// Long text is split into chunks whose MP3 frames are concatenated.
type GoogleClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewGoogleClient creates a client for the translate_tts endpoint
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

// Synthesize fetches every chunk in order and writes the joined MP3 to outPath
func (g *GoogleClient) Synthesize(ctx context.Context, text, lang, outPath string) error {
	chunks := splitText(text, maxChunkRunes)
	if len(chunks) == 0 {
		return fmt.Errorf("nothing to synthesize")
	}

	var buf bytes.Buffer
	for i, chunk := range chunks {
		if err := g.fetch(ctx, &buf, chunk, lang, i, len(chunks)); err != nil {
			return err
		}
	}

	if buf.Len() == 0 {
		return ErrEmptyAudio
	}
	return writeAudio(&buf, outPath)
}

func (g *GoogleClient) fetch(ctx context.Context, w io.Writer, chunk, lang string, idx, total int) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", chunk)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("google tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("google tts", resp)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read google tts audio: %w", err)
	}
	return nil
}

// splitText breaks text into pieces of at most limit runes, preferring
// word boundaries and hard-splitting words that are longer than limit.
func splitText(text string, limit int) []string {
	words := strings.FieldsFunc(text, unicode.IsSpace)

	var (
		chunks  []string
		current strings.Builder
		n       int
	)
	flush := func() {
		if n > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			n = 0
		}
	}

	for _, word := range words {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(runes) == 0 {
			continue
		}

		need := len(runes)
		if n > 0 {
			need++
		}
		if n+need > limit {
			flush()
			need = len(runes)
		}
		if n > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(string(runes))
		n += need
	}
	flush()

	return chunks
}
