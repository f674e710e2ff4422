package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

// YouTube transcript fetching.
// Primary:  watch page ytInitialPlayerResponse → caption track → timedtext XML
// Fallback: /next → engagement panel → /get_transcript  (works from datacenter IPs)
// Fallback: ANDROID Innertube /player → captionTracks    (works from non-blocked IPs)

// Well-known failures. Messages are shown to API callers verbatim.
var (
	ErrTranscriptsDisabled = errors.New("Subtitles are disabled for this video")
	ErrVideoUnavailable    = errors.New("The video is no longer available")
	ErrNoTranscript        = errors.New("No transcripts available")
	ErrTooManyRequests     = errors.New("YouTube is receiving too many requests from this IP")
	ErrRequestBlocked      = errors.New("YouTube is blocking requests from this IP")
)

// FetchError ties a failure to the video it happened for.
type FetchError struct {
	VideoID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Could not retrieve a transcript for the video https://www.youtube.com/watch?v=%s: %v", e.VideoID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// YouTubeConfig configures the caption fetcher.
type YouTubeConfig struct {
	Client  *http.Client
	Limiter *rate.Limiter
	Langs   []string
	Metrics *engine.Metrics
	Logger  *slog.Logger
	BaseURL string // defaults to https://www.youtube.com
}

// YouTube fetches caption entries for a video. It implements transcript.Fetcher.
type YouTube struct {
	client  *http.Client
	limiter *rate.Limiter
	langs   []string
	metrics *engine.Metrics
	logger  *slog.Logger
	baseURL string
	getter  engine.Getter
}

var _ transcript.Fetcher = (*YouTube)(nil)

func NewYouTube(cfg YouTubeConfig) *YouTube {
	y := &YouTube{
		client:  cfg.Client,
		limiter: cfg.Limiter,
		langs:   cfg.Langs,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
	if y.client == nil {
		y.client = engine.NewHTTPClient(0)
	}
	if y.limiter == nil {
		y.limiter = engine.NewLimiter(0, 0)
	}
	if len(y.langs) == 0 {
		y.langs = []string{"en"}
	}
	if y.logger == nil {
		y.logger = slog.Default()
	}
	if y.baseURL == "" {
		y.baseURL = ytDefaultBaseURL
	}
	y.getter = engine.Getter{Client: y.client, Limiter: y.limiter, Metrics: y.metrics}
	return y
}

type strategy struct {
	name string
	fn   func(context.Context, string) ([]transcript.Entry, error)
}

// Fetch returns the caption entries of videoID in playback order.
// Strategies are tried in turn; a video that is definitely unavailable stops
// the chain early. On total failure the most specific error is returned.
func (y *YouTube) Fetch(ctx context.Context, videoID string) ([]transcript.Entry, error) {
	if videoID == "" {
		return nil, &FetchError{VideoID: videoID, Err: ErrNoTranscript}
	}

	strategies := []strategy{
		{"watch_page", y.fetchViaWatchPage},
		{"engagement_panel", y.fetchViaEngagementPanel},
		{"player", y.fetchViaPlayer},
	}

	var best error
	for _, s := range strategies {
		var entries []transcript.Entry
		err := engine.TrackOperation(ctx, y.logger, "youtube_"+s.name, 5*time.Second, func(ctx context.Context) error {
			var err error
			entries, err = s.fn(ctx, videoID)
			return err
		})
		y.metrics.IncrYouTubeAttempt(s.name, err)
		if err == nil {
			return entries, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &FetchError{VideoID: videoID, Err: ctxErr}
		}

		err = classify(err)
		y.logger.Warn("youtube: caption strategy failed",
			slog.String("strategy", s.name),
			slog.String("id", videoID),
			slog.Any("error", err),
		)
		if best == nil || (isWellKnown(err) && !isWellKnown(best)) {
			best = err
		}
		if errors.Is(err, ErrVideoUnavailable) {
			break
		}
	}
	return nil, &FetchError{VideoID: videoID, Err: best}
}

func isWellKnown(err error) bool {
	for _, target := range []error{ErrTranscriptsDisabled, ErrVideoUnavailable, ErrNoTranscript, ErrTooManyRequests, ErrRequestBlocked} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify maps upstream HTTP 429s onto ErrTooManyRequests.
func classify(err error) error {
	var se *engine.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrTooManyRequests, err)
	}
	return err
}

// playerError turns a non-OK playability status into an error, or nil when playable.
func playerError(ps *playabilityStatus) error {
	if ps == nil || ps.Status == "" || ps.Status == "OK" {
		return nil
	}
	switch ps.Status {
	case "ERROR":
		return ErrVideoUnavailable
	case "LOGIN_REQUIRED":
		if strings.Contains(strings.ToLower(ps.Reason), "bot") {
			return ErrRequestBlocked
		}
	}
	if ps.Reason != "" {
		return fmt.Errorf("the video is unplayable: %s", ps.Reason)
	}
	return fmt.Errorf("the video is unplayable (%s)", ps.Status)
}

// tracksFromPlayer validates a player response and returns its caption tracks.
func tracksFromPlayer(pr innertubePlayerResp) ([]captionTrack, error) {
	if err := playerError(pr.PlayabilityStatus); err != nil {
		return nil, err
	}
	if pr.Captions == nil {
		return nil, ErrTranscriptsDisabled
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, ErrNoTranscript
	}
	return tracks, nil
}

// --- strategy 1: watch page ---

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// fetchViaWatchPage scrapes the watch page HTML and reads caption tracks from
// the embedded ytInitialPlayerResponse. Works from any IP.
func (y *YouTube) fetchViaWatchPage(ctx context.Context, videoID string) ([]transcript.Entry, error) {
	watchURL := y.baseURL + "/watch?v=" + url.QueryEscape(videoID)

	resp, err := y.getter.Get(ctx, watchURL, map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := engine.ReadBody(resp, 6*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}

	pr, err := parseWatchPage(body)
	if err != nil {
		return nil, err
	}
	tracks, err := tracksFromPlayer(pr)
	if err != nil {
		return nil, err
	}
	return y.fetchTrack(ctx, tracks)
}

// parseWatchPage finds ytInitialPlayerResponse among the page's <script> elements.
func parseWatchPage(body []byte) (innertubePlayerResp, error) {
	var pr innertubePlayerResp

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pr, fmt.Errorf("parse watch page: %w", err)
	}
	if doc.Find(".g-recaptcha").Length() > 0 {
		return pr, ErrTooManyRequests
	}

	var blob []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, ytInitialPlayerResponseMarker)
		if idx < 0 {
			return true
		}
		blob = extractJSON([]byte(text[idx+len(ytInitialPlayerResponseMarker):]))
		return blob == nil
	})
	if blob == nil {
		return pr, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	if err := json.Unmarshal(blob, &pr); err != nil {
		return pr, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return pr, nil
}

// --- strategy 2: engagement panel ---

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// /next returns the params URL-encoded; /get_transcript wants raw base64.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", errors.New("getTranscriptEndpoint not found in engagement panels")
}

// segmentsToEntries flattens a /get_transcript response into entries.
func segmentsToEntries(resp ytGetTranscriptResp) []transcript.Entry {
	var entries []transcript.Entry
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			r := seg.TranscriptSegmentRenderer
			if r == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range r.Snippet.Runs {
				sb.WriteString(run.Text)
			}
			text := strings.TrimSpace(sb.String())
			if text == "" {
				continue
			}
			start := msToSeconds(r.StartMs)
			entries = append(entries, transcript.Entry{
				Text:     text,
				Start:    start,
				Duration: max(msToSeconds(r.EndMs)-start, 0),
			})
		}
	}
	return entries
}

// fetchViaEngagementPanel fetches a transcript via:
//  1. POST /next → engagementPanels containing the transcript continuation token
//  2. POST /get_transcript with the token → JSON segments
//
// Works from datacenter IPs where /player returns LOGIN_REQUIRED.
func (y *YouTube) fetchViaEngagementPanel(ctx context.Context, videoID string) ([]transcript.Entry, error) {
	visitorData := generateVisitorData()

	nextData, err := y.postInnerTubeWEB(ctx, ytNextPath, map[string]any{
		"videoId": videoID,
		"context": ytWebContext(visitorData),
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/next: %w", err)
	}

	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	transcriptData, err := y.postInnerTubeWEB(ctx, ytGetTranscriptPath, map[string]any{
		"params":  token,
		"context": ytWebContext(visitorData),
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}

	var transcriptResp ytGetTranscriptResp
	if err := json.Unmarshal(transcriptData, &transcriptResp); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}

	entries := segmentsToEntries(transcriptResp)
	if len(entries) == 0 {
		return nil, errors.New("empty transcript segments")
	}
	return entries, nil
}

// --- strategy 3: ANDROID player ---

// fetchViaPlayer uses the ANDROID Innertube /player endpoint.
// Works from non-blocked (residential/cloud) IP addresses.
func (y *YouTube) fetchViaPlayer(ctx context.Context, videoID string) ([]transcript.Entry, error) {
	data, err := y.postInnerTube(ctx, ytPlayerPath, innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}, map[string]string{
		"User-Agent":               ytAndroidUA,
		"X-Youtube-Client-Name":    "3",
		"X-Youtube-Client-Version": ytAndroidVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("android innertube: %w", err)
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(data, &playerResp); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	tracks, err := tracksFromPlayer(playerResp)
	if err != nil {
		return nil, err
	}
	return y.fetchTrack(ctx, tracks)
}

// --- caption tracks ---

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
// Skips tracks that require a PoToken, which only works in a browser.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

func (y *YouTube) fetchTrack(ctx context.Context, tracks []captionTrack) ([]transcript.Entry, error) {
	track, ok := pickBestTrack(tracks, y.langs)
	if !ok {
		return nil, errors.New("all caption tracks require a PoToken")
	}
	return y.fetchTimedText(ctx, track.BaseURL)
}

// fetchTimedText fetches and parses a YouTube timedtext XML caption URL.
func (y *YouTube) fetchTimedText(ctx context.Context, baseURL string) ([]transcript.Entry, error) {
	resp, err := y.getter.Get(ctx, baseURL, map[string]string{"User-Agent": engine.UserAgentChrome})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := engine.ReadBody(resp, 2*1024*1024)
	if err != nil {
		return nil, err
	}
	tt, err := parseTimedTextXML(body)
	if err != nil {
		return nil, err
	}
	return timedTextEntries(tt), nil
}

// timedTextEntries converts parsed timedtext into entries, skipping cues with no text.
func timedTextEntries(tt ytTimedText) []transcript.Entry {
	entries := make([]transcript.Entry, 0, len(tt.Lines)+len(tt.Body.Paras))
	for _, line := range tt.Lines {
		text := engine.CleanCaption(line.Text)
		if text == "" {
			continue
		}
		entries = append(entries, transcript.Entry{
			Text:     text,
			Start:    parseSeconds(line.Start),
			Duration: parseSeconds(line.Dur),
		})
	}
	for _, p := range tt.Body.Paras {
		raw := p.Text
		for _, w := range p.Words {
			raw += w.Text
		}
		text := engine.CleanCaption(raw)
		if text == "" {
			continue
		}
		entries = append(entries, transcript.Entry{
			Text:     text,
			Start:    float64(p.T) / 1000,
			Duration: float64(p.D) / 1000,
		})
	}
	return entries
}

func parseSeconds(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func msToSeconds(s string) float64 {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return float64(ms) / 1000
}
