package engine

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks operational counters. All methods are safe on a nil receiver
// so components can run without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	transcriptRequests *prometheus.CounterVec
	transcriptDuration prometheus.Histogram
	youtubeAttempts    *prometheus.CounterVec
	outboundRequests   *prometheus.CounterVec
	llmCalls           prometheus.Counter
	llmErrors          prometheus.Counter
	httpDuration       *prometheus.HistogramVec
	httpInFlight       prometheus.Gauge
}

// NewMetrics registers all collectors on reg. A nil reg gets a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		transcriptRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "go_transcript_transcript_requests_total",
			Help: "Transcript collaborator calls, by result (ok/error).",
		}, []string{"result"}),
		transcriptDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "go_transcript_transcript_duration_seconds",
			Help:    "Time spent in one transcript collaborator call.",
			Buckets: prometheus.DefBuckets,
		}),
		youtubeAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "go_transcript_youtube_attempts_total",
			Help: "YouTube caption strategies tried, by strategy and result.",
		}, []string{"strategy", "result"}),
		outboundRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "go_transcript_outbound_requests_total",
			Help: "Outbound HTTP requests to YouTube, by kind.",
		}, []string{"kind"}),
		llmCalls: f.NewCounter(prometheus.CounterOpts{
			Name: "go_transcript_llm_calls_total",
			Help: "Summarization LLM calls.",
		}),
		llmErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "go_transcript_llm_errors_total",
			Help: "Failed summarization LLM calls.",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "go_transcript_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "go_transcript_http_requests_in_flight",
			Help: "Current number of HTTP requests being served.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTranscript(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.transcriptDuration.Observe(elapsed.Seconds())
	m.transcriptRequests.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) IncrYouTubeAttempt(strategy string, err error) {
	if m == nil {
		return
	}
	m.youtubeAttempts.WithLabelValues(strategy, result(err)).Inc()
}

func (m *Metrics) IncrOutbound(kind string) {
	if m == nil {
		return
	}
	m.outboundRequests.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrLLM(err error) {
	if m == nil {
		return
	}
	m.llmCalls.Inc()
	if err != nil {
		m.llmErrors.Inc()
	}
}

// ObserveHTTP records one served request. path should be a route pattern,
// not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, logger *slog.Logger, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if elapsed := time.Since(start); elapsed > threshold {
		logger.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
