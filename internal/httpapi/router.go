package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

// Deps is everything the router needs, built once at startup.
type Deps struct {
	Service    *transcript.Service
	Summarizer *engine.Summarizer // nil answers 503 on /api/summarize
	Metrics    *engine.Metrics
	Logger     *slog.Logger
	MCP        http.Handler // nil leaves /mcp unrouted

	ServiceName       string
	RateLimitRequests int // <= 0 disables
	RateLimitWindow   time.Duration
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(Recoverer(logger))
	r.Use(middleware.RequestID)
	r.Use(CORS())
	r.Use(Instrument(d.Metrics, logger))
	if d.ServiceName != "" {
		r.Use(Tracing(d.ServiceName))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Group(func(r chi.Router) {
		if d.RateLimitRequests > 0 {
			window := d.RateLimitWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(RateLimit(d.RateLimitRequests, window))
		}
		r.Method(http.MethodPost, "/transcript", NewTranscriptHandler(d.Service, logger))
		r.Method(http.MethodPost, "/api/summarize", NewSummarizeHandler(d.Summarizer, logger))
		if d.MCP != nil {
			r.Handle("/mcp", d.MCP)
		}
	})

	return r
}
