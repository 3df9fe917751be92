package stt

import (
	"context"
	"fmt"
	"os"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lexiqai/speech-translator/internal/audio"
)

// Synchronous Recognize accepts at most one minute of audio
const syncRecognizeLimit = 55 * time.Second

// GoogleClient implements Recognizer using Google Cloud Speech-to-Text
type GoogleClient struct {
	model     string
	recognize func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	longRecog func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	closeFn   func() error
}

// NewGoogleClient creates a Cloud Speech client. An empty credentialsFile uses
// application default credentials.
func NewGoogleClient(ctx context.Context, credentialsFile, model string) (*GoogleClient, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleClient{
		model: model,
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
		longRecog: func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
			op, err := client.LongRunningRecognize(ctx, req)
			if err != nil {
				return nil, err
			}
			return op.Wait(ctx)
		},
		closeFn: client.Close,
	}, nil
}

// Name returns the backend name
func (g *GoogleClient) Name() string {
	return "google"
}

// Transcribe sends the clip as LINEAR16 and joins the best alternative of every result
func (g *GoogleClient) Transcribe(ctx context.Context, clip *audio.NormalizedAudio, locale string) (Transcript, error) {
	data, err := os.ReadFile(clip.Path)
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to read normalized audio: %w", err)
	}

	cfg := g.recognitionConfig(clip, locale)
	content := &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
	}

	var results []*speechpb.SpeechRecognitionResult
	if clip.Duration > syncRecognizeLimit {
		resp, err := g.longRecog(ctx, &speechpb.LongRunningRecognizeRequest{Config: cfg, Audio: content})
		if err != nil {
			return Transcript{}, describeGoogleError(err)
		}
		results = resp.GetResults()
	} else {
		resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{Config: cfg, Audio: content})
		if err != nil {
			return Transcript{}, describeGoogleError(err)
		}
		results = resp.GetResults()
	}

	return transcriptFromResults(results), nil
}

func (g *GoogleClient) recognitionConfig(clip *audio.NormalizedAudio, locale string) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(clip.SampleRate),
		AudioChannelCount:          int32(clip.Channels),
		LanguageCode:               locale,
		Model:                      g.model,
		EnableAutomaticPunctuation: true,
		MaxAlternatives:            1,
	}
}

// Close releases the gRPC connection
func (g *GoogleClient) Close() error {
	if g.closeFn == nil {
		return nil
	}
	return g.closeFn()
}

func transcriptFromResults(results []*speechpb.SpeechRecognitionResult) Transcript {
	var (
		parts      []string
		confidence float32
		scored     int
	)
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		parts = append(parts, alts[0].GetTranscript())
		if c := alts[0].GetConfidence(); c > 0 {
			confidence += c
			scored++
		}
	}

	t := Transcript{Text: joinAlternatives(parts)}
	if scored > 0 {
		t.Confidence = float64(confidence) / float64(scored)
	}
	return t
}

// describeGoogleError keeps the gRPC status code in the message
func describeGoogleError(err error) error {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return fmt.Errorf("google speech %s: %s", s.Code(), s.Message())
	}
	return fmt.Errorf("google speech request failed: %w", err)
}
