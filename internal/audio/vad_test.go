package audio

import (
	"testing"
)

func constFrame(n int, amplitude int16) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return samples
}

func TestVADDetector_ProcessFrame_Speech(t *testing.T) {
	vad := NewVADDetector(&VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       320,
	})

	samples := constFrame(320, 5000)

	for i := 0; i < 5; i++ {
		isSpeaking, speechStarted, _ := vad.ProcessFrame(samples)
		if !isSpeaking {
			t.Errorf("Expected speech detection on frame %d", i)
		}
		if i == 0 && !speechStarted {
			t.Error("Expected speech to start on first frame")
		}
	}
	if vad.SpeechFrames() != 5 {
		t.Errorf("Expected 5 speech frames, got %d", vad.SpeechFrames())
	}
}

func TestVADDetector_ProcessFrame_Silence(t *testing.T) {
	vad := NewVADDetector(&VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       320,
	})

	samples := constFrame(320, 10)

	for i := 0; i < 15; i++ {
		isSpeaking, _, _ := vad.ProcessFrame(samples)
		if isSpeaking {
			t.Errorf("Expected silence on frame %d", i)
		}
	}
}

func TestVADDetector_ProcessFrame_SpeechToSilence(t *testing.T) {
	vad := NewVADDetector(&VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       320,
	})

	for i := 0; i < 5; i++ {
		vad.ProcessFrame(constFrame(320, 5000))
	}

	speechEnded := false
	for i := 0; i < 15; i++ {
		if _, _, ended := vad.ProcessFrame(constFrame(320, 10)); ended {
			speechEnded = true
			break
		}
	}

	if !speechEnded {
		t.Error("Expected speech to end after silence frames")
	}
}

func TestDefaultVADConfig(t *testing.T) {
	config := DefaultVADConfig()
	if config.EnergyThreshold != 500.0 {
		t.Errorf("Expected default EnergyThreshold 500.0, got %f", config.EnergyThreshold)
	}
	if config.FrameSize != FrameSizeFor(DefaultSampleRate) {
		t.Errorf("Expected default FrameSize %d, got %d", FrameSizeFor(DefaultSampleRate), config.FrameSize)
	}
	if config.MinSpeechFrames != 3 {
		t.Errorf("Expected default MinSpeechFrames 3, got %d", config.MinSpeechFrames)
	}
}

func TestHasSpeech(t *testing.T) {
	config := &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       320,
		MinSpeechFrames: 3,
	}

	silence := constFrame(16000, 0)
	if HasSpeech(silence, config) {
		t.Error("Expected one second of silence to have no speech")
	}

	// Two loud frames are below the minimum
	blip := append(constFrame(640, 5000), constFrame(16000, 0)...)
	if HasSpeech(blip, config) {
		t.Error("Expected a short blip not to count as speech")
	}

	talk := append(constFrame(8000, 0), constFrame(3200, 4000)...)
	if !HasSpeech(talk, config) {
		t.Error("Expected sustained energy to count as speech")
	}

	if HasSpeech(nil, nil) {
		t.Error("Expected empty clip to have no speech")
	}
}

func TestCalculateRMS(t *testing.T) {
	samples := []int16{1000, -1000, 2000, -2000}
	rms := CalculateRMS(samples)

	// sqrt((1000^2 + 1000^2 + 2000^2 + 2000^2) / 4)
	expected := 1581.14
	tolerance := 1.0

	if rms < expected-tolerance || rms > expected+tolerance {
		t.Errorf("Expected RMS around %.2f, got %.2f", expected, rms)
	}

	if CalculateRMS(nil) != 0 {
		t.Error("Expected RMS of empty input to be 0")
	}
}
