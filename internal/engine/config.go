package engine

import (
	"net/http"
	"time"
)

// Config holds all service configuration, loaded in main and passed down
// explicitly. Nothing in this package keeps a copy.
type Config struct {
	Port            string
	ShutdownTimeout time.Duration

	// YouTube caption fetching.
	YouTubeLangs       []string
	YouTubeHTTPTimeout time.Duration
	YouTubeRateRPS     float64
	YouTubeRateBurst   int
	HTTPClient         *http.Client // nil = built from YouTubeHTTPTimeout

	// Inbound per-IP rate limit. RateLimitRequests <= 0 disables it.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Summarization. Empty LLMAPIKey disables /api/summarize.
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMMaxTokens       int
	LLMTemperature     float64
	SummaryMaxChars    int

	MCPEnabled bool

	Telemetry TelemetryConfig
}

// SummarizeEnabled reports whether an LLM key is configured.
func (c Config) SummarizeEnabled() bool {
	return c.LLMAPIKey != ""
}
