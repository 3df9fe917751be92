package audio

import "time"

// Canonical waveform produced by the normalizer and consumed by recognizers
const (
	CanonicalChannels      = 1
	CanonicalBitsPerSample = 16
	DefaultSampleRate      = 16000
)

// RawAudio is an uploaded clip as received, with its container hint
type RawAudio struct {
	Data   []byte
	Format string // Container hint such as "webm", "ogg", "wav"
}

// NormalizedAudio is a PCM-in-WAV file on scratch storage
type NormalizedAudio struct {
	Path          string
	SampleRate    int
	Channels      int
	BitsPerSample int
	Duration      time.Duration
	DataSize      int64 // Bytes of PCM payload, excluding the header
}

// Empty reports whether the waveform has no samples
func (n *NormalizedAudio) Empty() bool {
	return n == nil || n.DataSize == 0
}
