package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const wavFormatPCM = 1

// ErrInvalidWAV is returned when a file is not a RIFF/WAVE container
var ErrInvalidWAV = errors.New("invalid WAV file")

// WAVInfo describes the format and payload of a WAV file
type WAVInfo struct {
	AudioFormat   uint16        `json:"audio_format"`
	SampleRate    uint32        `json:"sample_rate"`
	Channels      uint16        `json:"channels"`
	BitsPerSample uint16        `json:"bits_per_sample"`
	DataOffset    int64         `json:"data_offset"`
	DataSize      uint32        `json:"data_size_bytes"`
	Duration      time.Duration `json:"duration"`
}

// NumSamples returns the number of sample frames in the data chunk
func (w *WAVInfo) NumSamples() uint32 {
	frame := uint32(w.Channels) * uint32(w.BitsPerSample) / 8
	if frame == 0 {
		return 0
	}
	return w.DataSize / frame
}

// ReadWAVInfo parses the header of a WAV file on disk
func ReadWAVInfo(path string) (*WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	return ParseWAVHeader(f)
}

// ParseWAVHeader walks the RIFF chunks up to the data chunk.
// Unknown chunks (LIST, fact, ...) are skipped.
func ParseWAVHeader(r io.Reader) (*WAVInfo, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: header too short: %v", ErrInvalidWAV, err)
	}
	if string(riff[0:4]) != "RIFF" {
		return nil, fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	}
	if string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing WAVE format", ErrInvalidWAV)
	}

	info := &WAVInfo{}
	offset := int64(12)
	haveFmt := false

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if !haveFmt {
				return nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
			}
			return nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
		}
		offset += 8

		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too small (%d bytes)", ErrInvalidWAV, size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			info.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			info.Channels = binary.LittleEndian.Uint16(body[2:4])
			info.SampleRate = binary.LittleEndian.Uint32(body[4:8])
			info.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			info.DataOffset = offset
			info.DataSize = size
			if info.SampleRate > 0 {
				frames := info.NumSamples()
				info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
			}
			return info, nil

		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return nil, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, id)
			}
		}

		offset += int64(size)
		// Chunks are word aligned
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return nil, fmt.Errorf("%w: truncated padding", ErrInvalidWAV)
			}
			offset++
		}
	}
}

// CheckCanonical verifies the file is mono 16-bit PCM at sampleRate
func (w *WAVInfo) CheckCanonical(sampleRate int) error {
	if w.AudioFormat != wavFormatPCM {
		return fmt.Errorf("unsupported audio format: %d (only PCM is supported)", w.AudioFormat)
	}
	if w.BitsPerSample != CanonicalBitsPerSample {
		return fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", w.BitsPerSample)
	}
	if w.Channels != CanonicalChannels {
		return fmt.Errorf("unsupported channel count: %d (only mono is supported)", w.Channels)
	}
	if int(w.SampleRate) != sampleRate {
		return fmt.Errorf("unexpected sample rate: %d (want %d)", w.SampleRate, sampleRate)
	}
	return nil
}

// EncodeWAV encodes mono PCM-16 samples into a canonical WAV container
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   CanonicalChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * CanonicalChannels * CanonicalBitsPerSample / 8,
		BlockAlign:    CanonicalChannels * CanonicalBitsPerSample / 8,
		BitsPerSample: CanonicalBitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// ReadSamples loads the PCM-16 payload of a canonical WAV file
func ReadSamples(path string) ([]int16, *WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	info, err := ParseWAVHeader(f)
	if err != nil {
		return nil, nil, err
	}
	if info.BitsPerSample != CanonicalBitsPerSample {
		return nil, nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", info.BitsPerSample)
	}

	samples := make([]int16, info.DataSize/2)
	if err := binary.Read(f, binary.LittleEndian, samples); err != nil {
		return nil, nil, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return samples, info, nil
}
