package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Provider names accepted by the *_PROVIDER settings
const (
	ProviderGoogle     = "google"
	ProviderDeepgram   = "deepgram"
	ProviderWhisper    = "whisper"
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
	ProviderCartesia   = "cartesia"
)

// Config holds all configuration for the speech translator service
type Config struct {
	// Server configuration
	Port               string   `envconfig:"PORT" default:"8000"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	MaxUploadBytes     int64    `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"` // 10 MiB
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`  // Per client IP, 0 disables

	// Pipeline configuration
	PipelineTimeout        int    `envconfig:"PIPELINE_TIMEOUT" default:"60"`         // seconds
	MaxConcurrentPipelines int    `envconfig:"MAX_CONCURRENT_PIPELINES" default:"16"` // Running pipelines
	PipelineBacklog        int    `envconfig:"PIPELINE_BACKLOG" default:"64"`         // Requests waiting for a slot
	PipelineBacklogTimeout int    `envconfig:"PIPELINE_BACKLOG_TIMEOUT" default:"10"` // seconds a request may wait for a slot
	ScratchDir             string `envconfig:"SCRATCH_DIR" default:""`                // Empty means os.TempDir()
	DefaultInputLang       string `envconfig:"DEFAULT_INPUT_LANG" default:"en"`
	DefaultOutputLang      string `envconfig:"DEFAULT_OUTPUT_LANG" default:"hi"`
	DefaultUploadFormat    string `envconfig:"DEFAULT_UPLOAD_FORMAT" default:"webm"`

	// Audio normalization (ffmpeg)
	FFmpegPath           string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	NormalizedSampleRate int    `envconfig:"NORMALIZED_SAMPLE_RATE" default:"16000"`

	// Recognition locale hint: languages listed here get "-<REGION_HINT>" appended
	RegionHint          string   `envconfig:"REGION_HINT" default:"IN"`
	RegionHintLanguages []string `envconfig:"REGION_HINT_LANGUAGES" default:"hi,en"`

	// Provider selection
	STTProvider       string `envconfig:"STT_PROVIDER" default:"google"`       // google, deepgram, whisper
	TranslateProvider string `envconfig:"TRANSLATE_PROVIDER" default:"google"` // google, gemini, openai
	TTSProvider       string `envconfig:"TTS_PROVIDER" default:"google"`       // google, elevenlabs, openai, cartesia

	// Outbound HTTP
	HTTPClientTimeout int `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30"` // seconds

	// Google (Cloud Speech-to-Text and the public translate/TTS endpoints)
	GoogleCredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS" default:""`
	GoogleSpeechModel     string `envconfig:"GOOGLE_SPEECH_MODEL" default:""`
	GoogleTranslateURL    string `envconfig:"GOOGLE_TRANSLATE_URL" default:"https://translate.googleapis.com/translate_a/single"`
	GoogleTTSURL          string `envconfig:"GOOGLE_TTS_URL" default:"https://translate.google.com/translate_tts"`

	// Deepgram STT API configuration
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// OpenAI (Whisper STT, chat translation, speech synthesis)
	OpenAIAPIKey          string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL         string `envconfig:"OPENAI_BASE_URL" default:""`
	OpenAITranscribeModel string `envconfig:"OPENAI_TRANSCRIBE_MODEL" default:"whisper-1"`
	OpenAITranslateModel  string `envconfig:"OPENAI_TRANSLATE_MODEL" default:"gpt-4o-mini"`
	OpenAITTSModel        string `envconfig:"OPENAI_TTS_MODEL" default:"tts-1"`
	OpenAITTSVoice        string `envconfig:"OPENAI_TTS_VOICE" default:"alloy"`

	// Gemini translation
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL" default:""`

	// ElevenLabs TTS
	ElevenLabsAPIKey  string `envconfig:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsBaseURL string `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io/v1"`
	ElevenLabsVoiceID string `envconfig:"ELEVENLABS_VOICE_ID" default:"21m00Tcm4TlvDq8ikWAM"`
	ElevenLabsModelID string `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_multilingual_v2"`

	// Cartesia TTS API configuration
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaBaseURL string `envconfig:"CARTESIA_BASE_URL" default:"https://api.cartesia.ai"`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"a0e99841-438c-4a64-b679-ae501e7d6091"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic-2"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Silence gate: skip recognition when the normalized clip has no voiced frames
	VADEnabled         bool    `envconfig:"VAD_ENABLED" default:"false"`
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold
	VADMinSpeechFrames int     `envconfig:"VAD_MIN_SPEECH_FRAMES" default:"3"`    // 20ms frames above threshold

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.STTProvider = strings.ToLower(strings.TrimSpace(cfg.STTProvider))
	cfg.TranslateProvider = strings.ToLower(strings.TrimSpace(cfg.TranslateProvider))
	cfg.TTSProvider = strings.ToLower(strings.TrimSpace(cfg.TTSProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks provider names and the credentials each selected provider needs
func (c *Config) Validate() error {
	switch c.STTProvider {
	case ProviderGoogle:
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when STT_PROVIDER=deepgram")
		}
	case ProviderWhisper:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when STT_PROVIDER=whisper")
		}
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q", c.STTProvider)
	}

	switch c.TranslateProvider {
	case ProviderGoogle:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when TRANSLATE_PROVIDER=gemini")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TRANSLATE_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown TRANSLATE_PROVIDER %q", c.TranslateProvider)
	}

	switch c.TTSProvider {
	case ProviderGoogle:
	case ProviderElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TTS_PROVIDER=openai")
		}
	case ProviderCartesia:
		if c.CartesiaAPIKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required when TTS_PROVIDER=cartesia")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	if c.NormalizedSampleRate <= 0 {
		return fmt.Errorf("NORMALIZED_SAMPLE_RATE must be positive, got %d", c.NormalizedSampleRate)
	}
	if c.MaxConcurrentPipelines <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_PIPELINES must be positive, got %d", c.MaxConcurrentPipelines)
	}
	if c.PipelineTimeout <= 0 {
		return fmt.Errorf("PIPELINE_TIMEOUT must be positive, got %d", c.PipelineTimeout)
	}
	if c.PipelineBacklogTimeout < 0 {
		return fmt.Errorf("PIPELINE_BACKLOG_TIMEOUT must not be negative, got %d", c.PipelineBacklogTimeout)
	}

	return nil
}

// writeSlack covers reading the upload and writing the response around a run
const writeSlack = 15 * time.Second

// PipelineDeadline is the budget of one pipeline run
func (c *Config) PipelineDeadline() time.Duration {
	return time.Duration(c.PipelineTimeout) * time.Second
}

// BacklogWait is how long a request may queue for a pipeline slot
func (c *Config) BacklogWait() time.Duration {
	return time.Duration(c.PipelineBacklogTimeout) * time.Second
}

// WriteTimeout bounds a whole /translate exchange: queueing, the run, and slack
func (c *Config) WriteTimeout() time.Duration {
	return c.BacklogWait() + c.PipelineDeadline() + writeSlack
}
