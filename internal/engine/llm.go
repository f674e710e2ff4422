package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSummarizeDisabled is returned when no LLM is configured.
var ErrSummarizeDisabled = errors.New("Summarization is not configured")

// CompleteFunc sends one system+user prompt pair to an LLM and returns the reply text.
type CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

// Summarizer turns a transcript into an emoji-bullet summary.
type Summarizer struct {
	complete CompleteFunc
	maxChars int
	metrics  *Metrics
}

// NewSummarizer returns nil when complete is nil so callers can treat a
// missing LLM as "disabled" with a single nil check.
func NewSummarizer(complete CompleteFunc, maxChars int, m *Metrics) *Summarizer {
	if complete == nil {
		return nil
	}
	return &Summarizer{complete: complete, maxChars: maxChars, metrics: m}
}

// Summarize calls the LLM once. Transcripts longer than maxChars runes are
// cut at a word boundary first.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if s == nil {
		return "", ErrSummarizeDisabled
	}
	if s.maxChars > 0 {
		transcript = TruncateAtWord(transcript, s.maxChars)
	}

	raw, err := s.complete(ctx, summarySystemPrompt, fmt.Sprintf(summaryPrompt, transcript))
	s.metrics.IncrLLM(err)
	if err != nil {
		return "", err
	}
	if out := StripFences(raw); out != "" {
		return out, nil
	}
	return "No summary available.", nil
}

// IsRateLimit reports whether err looks like an upstream rate-limit rejection.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}
