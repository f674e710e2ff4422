package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

const maxSummarizeReqLen = 8 << 20

type summarizeRequest struct {
	Transcript string `json:"transcript"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// SummarizeHandler serves POST /api/summarize. A nil summarizer answers 503.
type SummarizeHandler struct {
	summarizer *engine.Summarizer
	logger     *slog.Logger
}

func NewSummarizeHandler(s *engine.Summarizer, logger *slog.Logger) *SummarizeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummarizeHandler{summarizer: s, logger: logger}
}

func (h *SummarizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSummarizeReqLen)).Decode(&req); err != nil {
		req.Transcript = ""
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "No transcript provided",
			Details: "The request must include a transcript in the request body",
		})
		return
	}
	if h.summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, engine.ErrSummarizeDisabled.Error())
		return
	}

	h.logger.Info("summarize request", slog.Int("transcript_chars", len(req.Transcript)))
	summary, err := h.summarizer.Summarize(r.Context(), req.Transcript)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, summarizeResponse{Summary: summary})
	case engine.IsRateLimit(err):
		h.logger.Warn("summarize rate limited", slog.Any("error", err))
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:   "Rate limit exceeded. Please try again in a minute.",
			Details: err.Error(),
		})
	default:
		h.logger.Error("summarize failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Failed to summarize video",
			Details: err.Error(),
		})
	}
}
