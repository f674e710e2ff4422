// Package transcript resolves YouTube URLs to video identifiers and turns
// caption entries from a Fetcher into plain text.
package transcript

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

const tracerName = "github.com/anatolykoptev/go_transcript/internal/transcript"

// Entry is one timed caption unit, in playback order.
type Entry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Fetcher retrieves the caption entries of a video.
// Errors carry a description suitable for showing to the caller as is.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) ([]Entry, error)
}

// Service calls a Fetcher once per request and records the outcome.
type Service struct {
	fetcher Fetcher
	metrics *engine.Metrics
	logger  *slog.Logger
}

func NewService(f Fetcher, m *engine.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: f, metrics: m, logger: logger}
}

// Get fetches the entries for videoID. There is no retry and no caching:
// every call reaches the Fetcher exactly once.
func (s *Service) Get(ctx context.Context, videoID string) ([]Entry, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "transcript.Get",
		trace.WithAttributes(attribute.String("youtube.video_id", videoID)))
	defer span.End()

	start := time.Now()
	entries, err := s.fetcher.Fetch(ctx, videoID)
	elapsed := time.Since(start)

	s.metrics.ObserveTranscript(elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("transcript fetch failed",
			slog.String("video_id", videoID),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return nil, err
	}
	span.SetAttributes(attribute.Int("transcript.entries", len(entries)))
	s.logger.Info("transcript fetched",
		slog.String("video_id", videoID),
		slog.Int("entries", len(entries)),
		slog.Duration("elapsed", elapsed),
	)
	return entries, nil
}

// Join concatenates entry texts with a single newline between entries.
func Join(entries []Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Text)
	}
	return sb.String()
}
