package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	activePipelines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_translator_active_pipelines",
		Help: "Number of translation pipelines currently running",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_translator_requests_total",
		Help: "Total number of translation requests by outcome",
	}, []string{"outcome"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_translator_request_duration_seconds",
		Help:    "End-to-end pipeline duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	// Stage metrics
	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_translator_stage_latency_seconds",
		Help:    "Pipeline stage latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage", "backend"})

	stageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_translator_stage_requests_total",
		Help: "Total number of pipeline stage executions",
	}, []string{"stage", "backend", "status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_translator_errors_total",
		Help: "Total number of pipeline errors",
	}, []string{"kind", "stage"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_translator_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_translator_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_translator_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	clipDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_translator_clip_duration_seconds",
		Help:    "Duration of normalized input clips in seconds",
		Buckets: []float64{0.5, 1, 2, 3, 5, 10, 30, 60},
	})
)

// Metrics tracks metrics for a single pipeline run.
// A run is sequential, so no locking is needed.
type Metrics struct {
	requestID string
	startTime time.Time
}

// NewRequestMetrics creates a new metrics tracker for a request
func NewRequestMetrics(requestID string) *Metrics {
	return &Metrics{
		requestID: requestID,
		startTime: time.Now(),
	}
}

// RecordRequestStart records the start of a pipeline run
func (m *Metrics) RecordRequestStart() {
	activePipelines.Inc()
}

// RecordRequestEnd records the end of a pipeline run.
// outcome is "success" or an error kind.
func (m *Metrics) RecordRequestEnd(outcome string) {
	activePipelines.Dec()
	requestsTotal.WithLabelValues(outcome).Inc()
	requestDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordStage records one stage execution
func (m *Metrics) RecordStage(stage, backend string, started time.Time, success bool) {
	stageLatency.WithLabelValues(stage, backend).Observe(time.Since(started).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	stageRequests.WithLabelValues(stage, backend, status).Inc()
}

// RecordError records a classified pipeline error
func (m *Metrics) RecordError(kind, stage string) {
	errorsTotal.WithLabelValues(kind, stage).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordClipDuration records the duration of a normalized clip
func (m *Metrics) RecordClipDuration(d time.Duration) {
	clipDuration.Observe(d.Seconds())
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
