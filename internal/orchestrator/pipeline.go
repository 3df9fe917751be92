package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-translator/internal/audio"
	"github.com/lexiqai/speech-translator/internal/observability"
	"github.com/lexiqai/speech-translator/internal/resilience"
	"github.com/lexiqai/speech-translator/internal/scratch"
	"github.com/lexiqai/speech-translator/internal/stt"
	"github.com/lexiqai/speech-translator/internal/translate"
	"github.com/lexiqai/speech-translator/internal/tts"
)

const synthesizedFileName = "synthesized.mp3"

// Normalizer converts an upload into the canonical waveform inside dir
type Normalizer interface {
	Normalize(ctx context.Context, raw audio.RawAudio, dir *scratch.Dir) (*audio.NormalizedAudio, error)
}

// Options tunes a Pipeline
type Options struct {
	ScratchDir          string
	RegionHint          string
	RegionHintLanguages []string

	// VAD enables the silence gate before recognition when non-nil
	VAD *audio.VADConfig

	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
}

// Pipeline runs normalize, recognize, translate and synthesize in order.
// A Pipeline is safe for concurrent use; each Run owns its own scratch dir.
type Pipeline struct {
	normalizer  Normalizer
	recognizer  stt.Recognizer
	translator  translate.Translator
	synthesizer tts.Synthesizer
	opts        Options

	breakers map[Stage]*resilience.CircuitBreaker
}

// NewPipeline wires the stage backends together
func NewPipeline(n Normalizer, r stt.Recognizer, t translate.Translator, s tts.Synthesizer, opts Options) *Pipeline {
	if opts.BreakerMaxFailures <= 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerResetTimeout <= 0 {
		opts.BreakerResetTimeout = 30 * time.Second
	}

	p := &Pipeline{
		normalizer:  n,
		recognizer:  r,
		translator:  t,
		synthesizer: s,
		opts:        opts,
		breakers:    make(map[Stage]*resilience.CircuitBreaker),
	}

	for stage, backend := range map[Stage]string{
		StageRecognize:  r.Name(),
		StageTranslate:  t.Name(),
		StageSynthesize: s.Name(),
	} {
		name := string(stage) + ":" + backend
		cb := resilience.NewCircuitBreaker(name, opts.BreakerMaxFailures, opts.BreakerResetTimeout)
		cb.OnStateChange(func(name string, state resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(name, int(state))
			logger := observability.GetLogger()
			logger.Warn().
				Str("breaker", name).
				Str("state", state.String()).
				Msg("Circuit breaker state changed")
		})
		observability.UpdateCircuitBreakerState(name, int(resilience.StateClosed))
		p.breakers[stage] = cb
	}

	return p
}

// ReadinessChecks reports each provider as unhealthy while its breaker is open
func (p *Pipeline) ReadinessChecks() map[string]observability.HealthCheckFunc {
	checks := make(map[string]observability.HealthCheckFunc, len(p.breakers))
	for _, cb := range p.breakers {
		checks[cb.Name()] = func(ctx context.Context) (bool, error) {
			state, requests, failures, rate := cb.GetStats()
			if state == resilience.StateOpen {
				return false, fmt.Errorf("circuit %s: %d of %d calls failed (%.1f%%)", state, failures, requests, rate)
			}
			return true, nil
		}
	}
	return checks
}

// run carries the per-request state through the steps
type run struct {
	p       *Pipeline
	req     Request
	dir     *scratch.Dir
	log     zerolog.Logger
	metrics *observability.Metrics
	state   State

	clip       *audio.NormalizedAudio
	transcript string
	translated string
	audioOut   []byte
}

type step struct {
	stage   Stage
	backend string
	next    State
	fn      func(ctx context.Context) error
}

// Run executes the pipeline for one clip. The first failing stage aborts the
// rest and is returned as *Error. Scratch files are removed in every case.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RequestID == "" {
		req.RequestID = observability.NewRequestID()
	}

	r := &run{
		p:       p,
		req:     req,
		log:     observability.FromContext(ctx).With().Str("request_id", req.RequestID).Logger(),
		metrics: observability.NewRequestMetrics(req.RequestID),
		state:   StateReceived,
	}

	r.metrics.RecordRequestStart()
	r.metrics.RecordAudioBytes("in", int64(len(req.Audio)))

	result, err := r.execute(ctx)

	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	r.metrics.RecordRequestEnd(outcome)

	return result, err
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	dir, err := scratch.New(r.p.opts.ScratchDir)
	if err != nil {
		return nil, r.fail(&Error{Stage: StageNormalize, Kind: KindInternal, Err: err})
	}
	r.dir = dir
	defer r.cleanup()

	steps := []step{
		{StageNormalize, "ffmpeg", StateNormalized, r.normalize},
		{StageRecognize, r.p.recognizer.Name(), StateTranscribed, r.recognize},
		{StageTranslate, r.p.translator.Name(), StateTranslated, r.translate},
		{StageSynthesize, r.p.synthesizer.Name(), StateSynthesized, r.synthesize},
	}

	for _, s := range steps {
		started := time.Now()
		err := s.fn(ctx)
		r.metrics.RecordStage(string(s.stage), s.backend, started, err == nil)

		if err != nil {
			return nil, r.fail(classify(s.stage, err))
		}

		r.log.Debug().
			Str("stage", string(s.stage)).
			Str("backend", s.backend).
			Str("state", s.next.String()).
			Dur("duration", time.Since(started)).
			Msg("Stage completed")
		r.state = s.next
	}

	return &Result{
		RecognizedText: r.transcript,
		TranslatedText: r.translated,
		AudioBase64:    base64.StdEncoding.EncodeToString(r.audioOut),
	}, nil
}

func (r *run) normalize(ctx context.Context) error {
	clip, err := r.p.normalizer.Normalize(ctx, audio.RawAudio{Data: r.req.Audio, Format: r.req.Format}, r.dir)
	if err != nil {
		return err
	}
	r.clip = clip
	r.metrics.RecordClipDuration(clip.Duration)
	return nil
}

func (r *run) recognize(ctx context.Context) error {
	if r.clip.Empty() {
		return &Error{Stage: StageRecognize, Kind: KindUnrecognizedSpeech, Err: ErrNoSpeech}
	}

	if vad := r.p.opts.VAD; vad != nil {
		samples, _, err := audio.ReadSamples(r.clip.Path)
		if err != nil {
			return &Error{Stage: StageNormalize, Kind: KindConversion, Err: err}
		}
		if !audio.HasSpeech(samples, vad) {
			r.log.Debug().Msg("Silence gate rejected clip")
			return &Error{Stage: StageRecognize, Kind: KindUnrecognizedSpeech, Err: ErrNoSpeech}
		}
	}

	locale := stt.Locale(r.req.InputLang, r.p.opts.RegionHintLanguages, r.p.opts.RegionHint)

	var transcript stt.Transcript
	err := r.p.breakers[StageRecognize].CallContext(ctx, func(ctx context.Context) error {
		var err error
		transcript, err = r.p.recognizer.Transcribe(ctx, r.clip, locale)
		return err
	})
	if err != nil {
		r.countBreakerFailure(ctx, StageRecognize, err)
		return err
	}

	if !transcript.Recognized() {
		return &Error{Stage: StageRecognize, Kind: KindUnrecognizedSpeech, Err: ErrNoSpeech}
	}

	r.transcript = transcript.Text
	r.log.Debug().
		Str("locale", locale).
		Float64("confidence", transcript.Confidence).
		Msg("Speech recognized")
	return nil
}

func (r *run) translate(ctx context.Context) error {
	var out string
	err := r.p.breakers[StageTranslate].CallContext(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.p.translator.Translate(ctx, r.transcript, r.req.InputLang, r.req.OutputLang)
		return err
	})
	if err != nil {
		r.countBreakerFailure(ctx, StageTranslate, err)
		return err
	}

	r.translated = out
	return nil
}

func (r *run) synthesize(ctx context.Context) error {
	outPath := r.dir.File(synthesizedFileName)

	err := r.p.breakers[StageSynthesize].CallContext(ctx, func(ctx context.Context) error {
		return r.p.synthesizer.Synthesize(ctx, r.translated, r.req.OutputLang, outPath)
	})
	if err != nil {
		r.countBreakerFailure(ctx, StageSynthesize, err)
		return err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return &Error{Stage: StageEncode, Kind: KindInternal, Err: fmt.Errorf("failed to read synthesized audio: %w", err)}
	}
	if len(data) == 0 {
		return tts.ErrEmptyAudio
	}

	r.audioOut = data
	r.metrics.RecordAudioBytes("out", int64(len(data)))
	return nil
}

// countBreakerFailure counts provider failures only; rejections by an open
// circuit and calls cut short by the caller's context are left out.
func (r *run) countBreakerFailure(ctx context.Context, stage Stage, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) || ctx.Err() != nil {
		return
	}
	observability.IncrementCircuitBreakerFailures(r.p.breakers[stage].Name())
}

// fail moves the run to StateFailed and records the classified error
func (r *run) fail(err *Error) error {
	from := r.state
	r.state = StateFailed
	r.metrics.RecordError(err.Kind.String(), string(err.Stage))

	event := r.log.Warn()
	if err.Kind == KindUnrecognizedSpeech {
		event = r.log.Info()
	}
	event.
		Str("stage", string(err.Stage)).
		Str("kind", err.Kind.String()).
		Str("from_state", from.String()).
		Err(err.Err).
		Msg("Pipeline failed")

	return err
}

// cleanup removes the scratch dir; errors never reach the caller
func (r *run) cleanup() {
	if err := r.dir.Cleanup(); err != nil {
		r.log.Debug().Err(err).Str("dir", r.dir.Path()).Msg("Failed to remove scratch dir")
	}
}

// classify wraps err as *Error for stage unless it already is one
func classify(stage Stage, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Stage: stage, Kind: stage.defaultKind(), Err: err}
}
