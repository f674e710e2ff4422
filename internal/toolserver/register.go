package toolserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

// TranscriptInput is the input of youtube_transcript.
type TranscriptInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL (youtube.com/watch?v=... or youtu.be/...)"`
}

// TranscriptOutput is the structured output of youtube_transcript.
type TranscriptOutput struct {
	VideoID    string             `json:"video_id"`
	Transcript string             `json:"transcript"`
	Entries    []transcript.Entry `json:"entries"`
}

// SummarizeInput is the input of summarize_transcript.
type SummarizeInput struct {
	Transcript string `json:"transcript" jsonschema:"Plain-text transcript to summarize"`
}

// SummarizeOutput is the structured output of summarize_transcript.
type SummarizeOutput struct {
	Summary string `json:"summary"`
}

var errInvalidURL = errors.New("Invalid YouTube URL")

// NewServer builds an MCP server with all transcript tools registered.
func NewServer(version string, svc *transcript.Service, sum *engine.Summarizer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_transcript",
		Version: version,
	}, nil)
	RegisterTools(server, svc, sum)
	return server
}

// Handler serves server over MCP streamable HTTP.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

// RegisterTools registers youtube_transcript and, when a summarizer is
// configured, summarize_transcript.
func RegisterTools(server *mcp.Server, svc *transcript.Service, sum *engine.Summarizer) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript",
		Description: "Fetch the transcript of a YouTube video. Accepts youtube.com/watch?v=ID and youtu.be/ID links. Returns the caption text joined by newlines plus the timed entries.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptOutput, error) {
		out, err := fetchTranscript(ctx, svc, input)
		return nil, out, err
	})

	if sum == nil {
		return
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_transcript",
		Description: "Summarize a video transcript as English emoji bullet points covering the main points and key takeaways.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input SummarizeInput) (*mcp.CallToolResult, SummarizeOutput, error) {
		out, err := summarize(ctx, sum, input)
		return nil, out, err
	})
}

func fetchTranscript(ctx context.Context, svc *transcript.Service, input TranscriptInput) (TranscriptOutput, error) {
	videoID, ok := transcript.VideoID(input.URL)
	if !ok || videoID == "" {
		return TranscriptOutput{}, errInvalidURL
	}
	entries, err := svc.Get(ctx, videoID)
	if err != nil {
		return TranscriptOutput{}, err
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}
	return TranscriptOutput{
		VideoID:    videoID,
		Transcript: transcript.Join(entries),
		Entries:    entries,
	}, nil
}

func summarize(ctx context.Context, sum *engine.Summarizer, input SummarizeInput) (SummarizeOutput, error) {
	if input.Transcript == "" {
		return SummarizeOutput{}, errors.New("transcript is required")
	}
	summary, err := sum.Summarize(ctx, input.Transcript)
	if err != nil {
		return SummarizeOutput{}, err
	}
	return SummarizeOutput{Summary: summary}, nil
}
