package main

import (
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

func loadConfig() engine.Config {
	return engine.Config{
		Port:            env.Str("PORT", "8080"),
		ShutdownTimeout: env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		YouTubeLangs:       env.List("YT_LANGS", "en"),
		YouTubeHTTPTimeout: env.Duration("YT_HTTP_TIMEOUT", 15*time.Second),
		YouTubeRateRPS:     env.Float("YT_RATE_RPS", 5),
		YouTubeRateBurst:   env.Int("YT_RATE_BURST", 10),

		RateLimitRequests: env.Int("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindow:   env.Duration("RATE_LIMIT_WINDOW", time.Minute),

		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://api.groq.com/openai/v1"),
		LLMModel:           env.Str("LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 2048),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.3),
		SummaryMaxChars:    env.Int("SUMMARY_MAX_CHARS", 60000),

		MCPEnabled: envBool("MCP_ENABLED", true),

		Telemetry: engine.TelemetryConfig{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Exporter:       env.Str("OTEL_EXPORTER", ""),
			Endpoint:       env.Str("OTEL_ENDPOINT", ""),
			SamplingRate:   env.Float("OTEL_SAMPLING_RATE", 1.0),
		},
	}
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(env.Str("LOG_LEVEL", "info"))}
	if strings.EqualFold(env.Str("LOG_FORMAT", "json"), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}
