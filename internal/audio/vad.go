package audio

import "math"

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Number of consecutive silence frames to mark as end of speech
	FrameSize       int     // Number of samples per frame (320 for 16kHz = 20ms)
	MinSpeechFrames int     // Frames above threshold needed before a clip counts as speech
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,  // 200ms of silence (10 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
		MinSpeechFrames: 3,
	}
}

// FrameSizeFor returns the number of samples in a 20ms frame
func FrameSizeFor(sampleRate int) int {
	if sampleRate <= 0 {
		return DefaultVADConfig().FrameSize
	}
	return sampleRate / 50
}

// VADDetector performs Voice Activity Detection
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
	speechFrames   int
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		v.speechFrames++

		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++

		// Enough silence marks the end of an utterance
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// SpeechFrames returns how many frames exceeded the threshold
func (v *VADDetector) SpeechFrames() int {
	return v.speechFrames
}

// HasSpeech runs the detector over a whole clip in fixed frames and reports
// whether enough frames carried speech energy.
func HasSpeech(samples []int16, config *VADConfig) bool {
	if config == nil {
		config = DefaultVADConfig()
	}
	frameSize := config.FrameSize
	if frameSize <= 0 {
		frameSize = DefaultVADConfig().FrameSize
	}
	minFrames := config.MinSpeechFrames
	if minFrames <= 0 {
		minFrames = 1
	}

	vad := NewVADDetector(config)
	for start := 0; start < len(samples); start += frameSize {
		end := start + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		vad.ProcessFrame(samples[start:end])
		if vad.SpeechFrames() >= minFrames {
			return true
		}
	}
	return false
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
