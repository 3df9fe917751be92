package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/lexiqai/speech-translator/internal/config"
	"github.com/lexiqai/speech-translator/internal/observability"
	"github.com/lexiqai/speech-translator/internal/orchestrator"
)

// Runner executes one translation pipeline run
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Handler serves the translation endpoints
type Handler struct {
	cfg    *config.Config
	runner Runner
}

// NewHandler creates a new handler
func NewHandler(cfg *config.Config, runner Runner) *Handler {
	return &Handler{cfg: cfg, runner: runner}
}

// NewRouter builds the full HTTP surface of the service.
// checks feed the /ready endpoint.
func NewRouter(cfg *config.Config, runner Runner, checks map[string]observability.HealthCheckFunc, logger zerolog.Logger) http.Handler {
	h := NewHandler(cfg, runner)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		hlog.NewHandler(logger),
		hlog.RequestIDHandler("request_id", "X-Request-Id"),
		hlog.AccessHandler(accessLog),
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/", h.Root)
	r.Get("/health", observability.HealthCheckHandler())
	r.Get("/ready", observability.ReadinessHandler(checks))
	r.Get("/languages", h.Languages)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(pr chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			pr.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
		}

		// A WebSocket connection runs its clips one at a time, so only the
		// upload endpoint takes a pipeline slot.
		pr.With(middleware.ThrottleWithOpts(middleware.ThrottleOpts{
			Limit:          cfg.MaxConcurrentPipelines,
			BacklogLimit:   cfg.PipelineBacklog,
			BacklogTimeout: cfg.BacklogWait(),
			StatusCode:     http.StatusServiceUnavailable,
		})).Post("/translate", h.Translate)
		pr.Get("/ws/translate", h.TranslateWS)
	})

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Request handled")
}

// requestID returns the id assigned by hlog, or a fresh one
func requestID(r *http.Request) string {
	if id, ok := hlog.IDFromRequest(r); ok {
		return id.String()
	}
	return observability.NewRequestID()
}

func (h *Handler) pipelineTimeout() time.Duration {
	return h.cfg.PipelineDeadline()
}
