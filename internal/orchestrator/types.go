package orchestrator

import (
	"errors"
	"fmt"
)

// Request is one clip to translate. It is never shared across requests.
type Request struct {
	RequestID  string
	Audio      []byte
	Format     string // Container hint for the upload
	InputLang  string
	OutputLang string
}

// Result is returned when every stage succeeded
type Result struct {
	RecognizedText string `json:"recognized_text"`
	TranslatedText string `json:"translated_text"`
	AudioBase64    string `json:"audio_base64"`
}

// State is the position of a run in the pipeline
type State int

const (
	StateReceived State = iota
	StateNormalized
	StateTranscribed
	StateTranslated
	StateSynthesized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateNormalized:
		return "normalized"
	case StateTranscribed:
		return "transcribed"
	case StateTranslated:
		return "translated"
	case StateSynthesized:
		return "synthesized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stage names a pipeline step
type Stage string

const (
	StageNormalize  Stage = "normalize"
	StageRecognize  Stage = "recognize"
	StageTranslate  Stage = "translate"
	StageSynthesize Stage = "synthesize"
	StageEncode     Stage = "encode"
)

// Kind classifies a pipeline failure
type Kind int

const (
	KindInternal Kind = iota
	KindConversion
	KindUnrecognizedSpeech
	KindRecognitionService
	KindTranslationService
	KindSynthesisService
)

func (k Kind) String() string {
	switch k {
	case KindConversion:
		return "conversion"
	case KindUnrecognizedSpeech:
		return "unrecognized_speech"
	case KindRecognitionService:
		return "recognition_service"
	case KindTranslationService:
		return "translation_service"
	case KindSynthesisService:
		return "synthesis_service"
	default:
		return "internal"
	}
}

// defaultKind is the kind of an unclassified failure in stage
func (s Stage) defaultKind() Kind {
	switch s {
	case StageNormalize:
		return KindConversion
	case StageRecognize:
		return KindRecognitionService
	case StageTranslate:
		return KindTranslationService
	case StageSynthesize:
		return KindSynthesisService
	default:
		return KindInternal
	}
}

// ErrNoSpeech marks a clip in which no speech was recognized
var ErrNoSpeech = errors.New("no speech recognized")

// Error is the terminal failure of a run
type Error struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies any error, defaulting to KindInternal
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// StageOf returns the stage an error came from, or "" if unknown
func StageOf(err error) Stage {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
