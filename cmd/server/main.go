package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/speech-translator/internal/audio"
	"github.com/lexiqai/speech-translator/internal/config"
	"github.com/lexiqai/speech-translator/internal/observability"
	"github.com/lexiqai/speech-translator/internal/orchestrator"
	"github.com/lexiqai/speech-translator/internal/server"
	"github.com/lexiqai/speech-translator/internal/stt"
	"github.com/lexiqai/speech-translator/internal/translate"
	"github.com/lexiqai/speech-translator/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_provider", cfg.STTProvider).
		Str("translate_provider", cfg.TranslateProvider).
		Str("tts_provider", cfg.TTSProvider).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech Translator Service starting")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	normalizer := audio.NewNormalizer(cfg.FFmpegPath, cfg.NormalizedSampleRate)
	if ok, err := normalizer.Check(startCtx); !ok {
		logger.Warn().Err(err).Str("ffmpeg_path", cfg.FFmpegPath).
			Msg("ffmpeg is not available; every translation will fail until it is installed")
	} else {
		logger.Info().Str("ffmpeg_path", cfg.FFmpegPath).Msg("ffmpeg available")
	}

	recognizer, err := stt.New(startCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create speech recognizer")
	}
	if closer, ok := recognizer.(io.Closer); ok {
		defer closer.Close()
	}

	translator, err := translate.New(startCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create translator")
	}

	synthesizer, err := tts.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create speech synthesizer")
	}

	opts := orchestrator.Options{
		ScratchDir:          cfg.ScratchDir,
		RegionHint:          cfg.RegionHint,
		RegionHintLanguages: cfg.RegionHintLanguages,
		BreakerMaxFailures:  cfg.CircuitBreakerMaxFailures,
		BreakerResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
	}
	if cfg.VADEnabled {
		vad := audio.DefaultVADConfig()
		vad.EnergyThreshold = cfg.VADEnergyThreshold
		vad.MinSpeechFrames = cfg.VADMinSpeechFrames
		vad.FrameSize = audio.FrameSizeFor(cfg.NormalizedSampleRate)
		opts.VAD = vad
	}
	pipeline := orchestrator.NewPipeline(normalizer, recognizer, translator, synthesizer, opts)

	// Readiness: ffmpeg probe plus one entry per provider circuit breaker
	checks := pipeline.ReadinessChecks()
	checks["ffmpeg"] = normalizer.Check

	router := server.NewRouter(cfg, pipeline, checks, logger)

	// The write timeout covers a full backlog wait plus a full pipeline run
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/translate", cfg.Port)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Let in-flight pipelines finish
	ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	logger.Info().Msg("Server exited gracefully")
}
