package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/lexiqai/speech-translator/internal/scratch"
)

const (
	inputBaseName      = "input"
	normalizedFileName = "normalized.wav"
	maxStderrBytes     = 512
)

var safeFormat = regexp.MustCompile(`^[a-z0-9]{1,8}$`)

// ErrEmptyUpload is returned when there are no bytes to decode
var ErrEmptyUpload = errors.New("uploaded audio is empty")

// Normalizer converts uploaded clips into canonical mono PCM-16 WAV using ffmpeg
type Normalizer struct {
	ffmpegPath string
	sampleRate int
}

// NewNormalizer creates a normalizer using the given ffmpeg binary
func NewNormalizer(ffmpegPath string, sampleRate int) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Normalizer{
		ffmpegPath: ffmpegPath,
		sampleRate: sampleRate,
	}
}

// SampleRate returns the canonical output rate
func (n *Normalizer) SampleRate() int {
	return n.sampleRate
}

// Args returns the ffmpeg arguments used to normalize in into out.
// Bit-exact flags and stripped metadata keep output identical for identical input.
func (n *Normalizer) Args(in, out string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", in,
		"-vn",
		"-map_metadata", "-1",
		"-ac", strconv.Itoa(CanonicalChannels),
		"-ar", strconv.Itoa(n.sampleRate),
		"-acodec", "pcm_s16le",
		"-fflags", "+bitexact",
		"-flags:a", "+bitexact",
		"-f", "wav",
		out,
	}
}

// Normalize writes raw into dir, decodes it and returns the canonical waveform.
// Every failure, including a missing ffmpeg binary, is a conversion failure.
func (n *Normalizer) Normalize(ctx context.Context, raw RawAudio, dir *scratch.Dir) (*NormalizedAudio, error) {
	if len(raw.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	format := strings.ToLower(raw.Format)
	if !safeFormat.MatchString(format) {
		format = DefaultFormat
	}

	in, err := dir.WriteFile(inputBaseName+"."+format, raw.Data)
	if err != nil {
		return nil, err
	}
	out := dir.File(normalizedFileName)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, n.ffmpegPath, n.Args(in, out)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		if msg := tail(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg failed to decode %s audio: %w: %s", format, err, msg)
		}
		return nil, fmt.Errorf("ffmpeg failed to decode %s audio: %w", format, err)
	}

	// The upload is no longer needed once decoded
	os.Remove(in)

	info, err := ReadWAVInfo(out)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg produced unreadable output: %w", err)
	}
	if err := info.CheckCanonical(n.sampleRate); err != nil {
		return nil, fmt.Errorf("ffmpeg produced non-canonical output: %w", err)
	}

	return &NormalizedAudio{
		Path:          out,
		SampleRate:    int(info.SampleRate),
		Channels:      int(info.Channels),
		BitsPerSample: int(info.BitsPerSample),
		Duration:      info.Duration,
		DataSize:      int64(info.DataSize),
	}, nil
}

// Check verifies the configured ffmpeg binary can be executed
func (n *Normalizer) Check(ctx context.Context) (bool, error) {
	path, err := exec.LookPath(n.ffmpegPath)
	if err != nil {
		return false, fmt.Errorf("ffmpeg not found at %q: %w", n.ffmpegPath, err)
	}

	if err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Run(); err != nil {
		return false, fmt.Errorf("ffmpeg at %q is not runnable: %w", path, err)
	}
	return true, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrBytes {
		s = s[len(s)-maxStderrBytes:]
	}
	return s
}
