package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

const (
	errInvalidURL       = "Invalid YouTube URL"
	maxTranscriptReqLen = 64 << 10
)

type transcriptRequest struct {
	URL *string `json:"url"`
}

type transcriptResponse struct {
	Transcript string `json:"transcript"`
}

// TranscriptHandler serves POST /transcript.
type TranscriptHandler struct {
	service *transcript.Service
	logger  *slog.Logger
}

func NewTranscriptHandler(service *transcript.Service, logger *slog.Logger) *TranscriptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptHandler{service: service, logger: logger}
}

// ServeHTTP runs validate → resolve → fetch → format. An unreadable body and a
// missing url both resolve to no identifier.
func (h *TranscriptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTranscriptReqLen)).Decode(&req); err != nil {
		req.URL = nil
	}

	videoID, ok := transcript.VideoIDFrom(req.URL)
	if !ok || videoID == "" {
		writeError(w, http.StatusBadRequest, errInvalidURL)
		return
	}

	// The collaborator call runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	entries, err := h.service.Get(ctx, videoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse{Transcript: transcript.Join(entries)})
}
