package stt

import (
	"context"
	"fmt"
	"io"
	"os"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/lexiqai/speech-translator/internal/audio"
)

// DeepgramClient implements Recognizer using Deepgram's pre-recorded REST API
type DeepgramClient struct {
	model      string
	transcribe func(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (Transcript, error)
}

// NewDeepgramClient creates a new Deepgram pre-recorded transcription client
func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	client := api.New(listenClient.NewREST(apiKey, &interfaces.ClientOptions{}))

	return &DeepgramClient{
		model: model,
		transcribe: func(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (Transcript, error) {
			res, err := client.FromStream(ctx, src, options)
			if err != nil {
				return Transcript{}, err
			}
			if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
				return Transcript{}, nil
			}

			alts := res.Results.Channels[0].Alternatives
			if len(alts) == 0 {
				return Transcript{}, nil
			}
			return Transcript{
				Text:       joinAlternatives([]string{alts[0].Transcript}),
				Confidence: alts[0].Confidence,
			}, nil
		},
	}
}

// Name returns the backend name
func (d *DeepgramClient) Name() string {
	return "deepgram"
}

// Transcribe uploads the normalized WAV and returns the first channel's best alternative
func (d *DeepgramClient) Transcribe(ctx context.Context, clip *audio.NormalizedAudio, locale string) (Transcript, error) {
	f, err := os.Open(clip.Path)
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to open normalized audio: %w", err)
	}
	defer f.Close()

	t, err := d.transcribe(ctx, f, d.options(locale))
	if err != nil {
		return Transcript{}, fmt.Errorf("deepgram transcription failed: %w", err)
	}
	return t, nil
}

func (d *DeepgramClient) options(locale string) *interfaces.PreRecordedTranscriptionOptions {
	return &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    locale,
		Punctuate:   true,
		SmartFormat: true,
	}
}
