package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/httpapi"
	"github.com/anatolykoptev/go_transcript/internal/server"
	"github.com/anatolykoptev/go_transcript/internal/toolserver"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

const serviceName = "go_transcript"

type app struct {
	service    *transcript.Service
	summarizer *engine.Summarizer
	telemetry  *engine.Telemetry
	server     *server.Server
}

// buildApp wires every component from cfg. Nothing is started.
func buildApp(ctx context.Context, cfg engine.Config, logger *slog.Logger) (*app, error) {
	tel, err := engine.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	svc := newService(cfg, metrics, logger)
	sum := newSummarizer(cfg, metrics)

	var mcpHandler http.Handler
	if cfg.MCPEnabled {
		mcpHandler = toolserver.Handler(toolserver.NewServer(version, svc, sum))
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Service:           svc,
		Summarizer:        sum,
		Metrics:           metrics,
		Logger:            logger,
		MCP:               mcpHandler,
		ServiceName:       serviceName,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	return &app{
		service:    svc,
		summarizer: sum,
		telemetry:  tel,
		server: server.New(server.Config{
			Port:            cfg.Port,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, router, logger),
	}, nil
}

func newService(cfg engine.Config, metrics *engine.Metrics, logger *slog.Logger) *transcript.Service {
	client := cfg.HTTPClient
	if client == nil {
		client = engine.NewHTTPClient(cfg.YouTubeHTTPTimeout)
	}
	yt := sources.NewYouTube(sources.YouTubeConfig{
		Client:  client,
		Limiter: engine.NewLimiter(cfg.YouTubeRateRPS, cfg.YouTubeRateBurst),
		Langs:   cfg.YouTubeLangs,
		Metrics: metrics,
		Logger:  logger,
	})
	return transcript.NewService(yt, metrics, logger)
}

func newSummarizer(cfg engine.Config, metrics *engine.Metrics) *engine.Summarizer {
	if !cfg.SummarizeEnabled() {
		return nil
	}
	client := llm.NewClient(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel,
		llm.WithFallbackKeys(cfg.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	complete := func(ctx context.Context, system, prompt string) (string, error) {
		return client.Complete(ctx, system, prompt)
	}
	return engine.NewSummarizer(complete, cfg.SummaryMaxChars, metrics)
}

// runFetch resolves rawURL, fetches once and prints the result to w.
func runFetch(ctx context.Context, w io.Writer, rawURL string, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	logger := newLogger(io.Discard)

	videoID, ok := transcript.VideoID(rawURL)
	if !ok || videoID == "" {
		return fmt.Errorf("Invalid YouTube URL: %s", rawURL)
	}

	entries, err := newService(cfg, nil, logger).Get(ctx, videoID)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []transcript.Entry{}
		}
		return enc.Encode(entries)
	}
	_, err = fmt.Fprintln(w, transcript.Join(entries))
	return err
}
