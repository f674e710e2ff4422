package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

func TestParseTimedTextFormat1(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="utf-8" ?><transcript>` +
		`<text start="0.5" dur="1.25">Hello &amp;amp; welcome</text>` +
		`<text start="1.75" dur="2">it&amp;#39;s here</text>` +
		`<text start="3.75" dur="1">   </text>` +
		`<text start="4.75" dur="0.5">[Music]</text>` +
		`</transcript>`)

	tt, err := parseTimedTextXML(body)
	if err != nil {
		t.Fatalf("parseTimedTextXML: %v", err)
	}
	want := []transcript.Entry{
		{Text: "Hello & welcome", Start: 0.5, Duration: 1.25},
		{Text: "it's here", Start: 1.75, Duration: 2},
		{Text: "[Music]", Start: 4.75, Duration: 0.5},
	}
	if diff := cmp.Diff(want, timedTextEntries(tt)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTimedTextSrv3(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body>` +
		`<p t="1000" d="2500">plain cue</p>` +
		`<p t="3500" d="1500"><s>word</s><s> runs</s></p>` +
		`<p t="5000" d="10"></p>` +
		`</body></timedtext>`)

	tt, err := parseTimedTextXML(body)
	if err != nil {
		t.Fatalf("parseTimedTextXML: %v", err)
	}
	want := []transcript.Entry{
		{Text: "plain cue", Start: 1, Duration: 2.5},
		{Text: "word runs", Start: 3.5, Duration: 1.5},
	}
	if diff := cmp.Diff(want, timedTextEntries(tt)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTimedTextInvalid(t *testing.T) {
	if _, err := parseTimedTextXML([]byte("<transcript><text>")); err == nil {
		t.Error("expected error for truncated XML")
	}
}

func TestPickBestTrack(t *testing.T) {
	manualEN := captionTrack{BaseURL: "u1", LanguageCode: "en"}
	asrEN := captionTrack{BaseURL: "u2", LanguageCode: "en", Kind: "asr"}
	manualDE := captionTrack{BaseURL: "u3", LanguageCode: "de"}
	enGB := captionTrack{BaseURL: "u4", LanguageCode: "en-GB"}
	poEN := captionTrack{BaseURL: "u5&exp=xpe", LanguageCode: "en"}

	tests := []struct {
		name   string
		tracks []captionTrack
		langs  []string
		want   captionTrack
		wantOK bool
	}{
		{"manual beats asr", []captionTrack{asrEN, manualEN}, []string{"en"}, manualEN, true},
		{"asr in preferred lang", []captionTrack{manualDE, asrEN}, []string{"en"}, asrEN, true},
		{"language order", []captionTrack{manualEN, manualDE}, []string{"de", "en"}, manualDE, true},
		{"english fallback", []captionTrack{manualDE, enGB}, []string{"fr"}, enGB, true},
		{"first usable", []captionTrack{manualDE}, []string{"fr"}, manualDE, true},
		{"skips po token", []captionTrack{poEN, asrEN}, []string{"en"}, asrEN, true},
		{"all need po token", []captionTrack{poEN}, []string{"en"}, captionTrack{}, false},
		{"none", nil, []string{"en"}, captionTrack{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tt.tracks, tt.langs)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("pickBestTrack() = (%+v, %v), want (%+v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1};var x = 2;`, `{"a":1}`},
		{`{"a":{"b":"}"}} trailing`, `{"a":{"b":"}"}}`},
		{`{"s":"quote \" brace }"}rest`, `{"s":"quote \" brace }"}`},
		{`{"s":"backslash \\"}rest`, `{"s":"backslash \\"}`},
		{`not json`, ``},
		{`{"open":`, ``},
	}
	for _, tt := range tests {
		if got := string(extractJSON([]byte(tt.in))); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseWatchPage(t *testing.T) {
	page := `<html><head><script>var other = 1;</script>` +
		`<script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"},` +
		`"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
		`{"baseUrl":"https://example.com/tt?v=x&lang=en","languageCode":"en","kind":"asr"}]}}};` +
		`var meta = {};</script></head><body></body></html>`

	pr, err := parseWatchPage([]byte(page))
	if err != nil {
		t.Fatalf("parseWatchPage: %v", err)
	}
	tracks, err := tracksFromPlayer(pr)
	if err != nil {
		t.Fatalf("tracksFromPlayer: %v", err)
	}
	want := []captionTrack{{BaseURL: "https://example.com/tt?v=x&lang=en", LanguageCode: "en", Kind: "asr"}}
	if diff := cmp.Diff(want, tracks); diff != "" {
		t.Errorf("tracks mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWatchPageErrors(t *testing.T) {
	if _, err := parseWatchPage([]byte(`<html><div class="g-recaptcha"></div></html>`)); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("captcha page error = %v, want ErrTooManyRequests", err)
	}
	if _, err := parseWatchPage([]byte(`<html><script>var x = 1;</script></html>`)); err == nil {
		t.Error("expected error when player response is missing")
	}
}

func TestTracksFromPlayer(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"unavailable", `{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`, ErrVideoUnavailable},
		{"bot check", `{"playabilityStatus":{"status":"LOGIN_REQUIRED","reason":"Sign in to confirm you're not a bot"}}`, ErrRequestBlocked},
		{"no captions", `{"playabilityStatus":{"status":"OK"}}`, ErrTranscriptsDisabled},
		{"no tracks", `{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[]}}}`, ErrNoTranscript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, err := parseWatchPage([]byte("<script>ytInitialPlayerResponse = " + tt.json + ";</script>"))
			if err != nil {
				t.Fatalf("parseWatchPage: %v", err)
			}
			if _, err := tracksFromPlayer(pr); !errors.Is(err, tt.want) {
				t.Errorf("tracksFromPlayer error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtractTranscriptToken(t *testing.T) {
	data := []byte(`{"engagementPanels":[{"x":{"getTranscriptEndpoint":{"params":"CgtBQkM%3D"}}}]}`)
	tok, err := extractTranscriptToken(data)
	if err != nil {
		t.Fatalf("extractTranscriptToken: %v", err)
	}
	if tok != "CgtBQkM=" {
		t.Errorf("token = %q, want CgtBQkM=", tok)
	}
	if _, err := extractTranscriptToken([]byte(`{}`)); err == nil {
		t.Error("expected error when endpoint is missing")
	}
}

func TestSegmentsToEntries(t *testing.T) {
	raw := `{"actions":[{"updateEngagementPanelAction":{"content":{"transcriptRenderer":{"content":{"transcriptSearchPanelRenderer":{"body":{"transcriptSegmentListRenderer":{"initialSegments":[` +
		`{"transcriptSegmentRenderer":{"startMs":"0","endMs":"1500","snippet":{"runs":[{"text":"first "},{"text":"line"}]}}},` +
		`{"transcriptSectionHeaderRenderer":{}},` +
		`{"transcriptSegmentRenderer":{"startMs":"1500","endMs":"1500","snippet":{"runs":[{"text":"  "}]}}},` +
		`{"transcriptSegmentRenderer":{"startMs":"2000","endMs":"4250","snippet":{"runs":[{"text":"second"}]}}}` +
		`]}}}}}}}}]}`
	var resp ytGetTranscriptResp
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := []transcript.Entry{
		{Text: "first line", Start: 0, Duration: 1.5},
		{Text: "second", Start: 2, Duration: 2.25},
	}
	if diff := cmp.Diff(want, segmentsToEntries(resp)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

// --- Fetch against a fake YouTube ---

type fakeYouTube struct {
	watchPage string
	nextBody  string
	player    string
	timedtext string

	innertubeHits atomic.Int32
	timedtextHits atomic.Int32
}

func (f *fakeYouTube) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, f.watchPage)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, _ *http.Request) {
		f.timedtextHits.Add(1)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, f.timedtext)
	})
	mux.HandleFunc(ytNextPath, func(w http.ResponseWriter, _ *http.Request) {
		f.innertubeHits.Add(1)
		_, _ = io.WriteString(w, f.nextBody)
	})
	mux.HandleFunc(ytPlayerPath, func(w http.ResponseWriter, _ *http.Request) {
		f.innertubeHits.Add(1)
		_, _ = io.WriteString(w, f.player)
	})
	return mux
}

func watchPageWith(playerJSON string) string {
	return "<html><script>var ytInitialPlayerResponse = " + playerJSON + ";</script></html>"
}

func newTestYouTube(t *testing.T, f *fakeYouTube) *YouTube {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	f.watchPage = strings.ReplaceAll(f.watchPage, "{{BASE}}", srv.URL)
	f.player = strings.ReplaceAll(f.player, "{{BASE}}", srv.URL)
	return NewYouTube(YouTubeConfig{
		Client:  srv.Client(),
		Langs:   []string{"en"},
		Metrics: engine.NewMetrics(nil),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		BaseURL: srv.URL,
	})
}

func TestFetchViaWatchPage(t *testing.T) {
	f := &fakeYouTube{
		watchPage: watchPageWith(`{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
			`{"baseUrl":"{{BASE}}/api/timedtext?v=abc&lang=de","languageCode":"de"},` +
			`{"baseUrl":"{{BASE}}/api/timedtext?v=abc&lang=en","languageCode":"en","kind":"asr"}]}}}`),
		timedtext: `<transcript><text start="0" dur="1.5">a</text><text start="1.5" dur="2">b</text><text start="3.5" dur="1">c</text></transcript>`,
	}
	y := newTestYouTube(t, f)

	entries, err := y.Fetch(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []transcript.Entry{
		{Text: "a", Start: 0, Duration: 1.5},
		{Text: "b", Start: 1.5, Duration: 2},
		{Text: "c", Start: 3.5, Duration: 1},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if got := transcript.Join(entries); got != "a\nb\nc" {
		t.Errorf("Join = %q", got)
	}
	if n := f.innertubeHits.Load(); n != 0 {
		t.Errorf("innertube hit %d times, want 0 when watch page succeeds", n)
	}
}

func TestFetchVideoUnavailableStopsEarly(t *testing.T) {
	f := &fakeYouTube{
		watchPage: watchPageWith(`{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`),
	}
	y := newTestYouTube(t, f)

	_, err := y.Fetch(context.Background(), "gone")
	if !errors.Is(err, ErrVideoUnavailable) {
		t.Fatalf("Fetch error = %v, want ErrVideoUnavailable", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.VideoID != "gone" {
		t.Errorf("error %v is not a FetchError for \"gone\"", err)
	}
	if !strings.Contains(err.Error(), "https://www.youtube.com/watch?v=gone") {
		t.Errorf("error message %q does not name the video", err.Error())
	}
	if n := f.innertubeHits.Load(); n != 0 {
		t.Errorf("innertube hit %d times, want 0 after unavailable", n)
	}
}

func TestFetchTranscriptsDisabled(t *testing.T) {
	f := &fakeYouTube{
		watchPage: watchPageWith(`{"playabilityStatus":{"status":"OK"}}`),
		nextBody:  `{}`,
		player:    `{"playabilityStatus":{"status":"OK"}}`,
	}
	y := newTestYouTube(t, f)

	_, err := y.Fetch(context.Background(), "nocaps")
	if !errors.Is(err, ErrTranscriptsDisabled) {
		t.Fatalf("Fetch error = %v, want ErrTranscriptsDisabled", err)
	}
	if !strings.HasPrefix(err.Error(), "Could not retrieve a transcript") {
		t.Errorf("error message = %q", err.Error())
	}
	if f.timedtextHits.Load() != 0 {
		t.Error("timedtext fetched for a video without captions")
	}
}

func TestFetchFallsBackToPlayer(t *testing.T) {
	f := &fakeYouTube{
		watchPage: "<html>no player here</html>",
		nextBody:  `{}`,
		player: `{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
			`{"baseUrl":"{{BASE}}/api/timedtext?v=abc&lang=en","languageCode":"en"}]}}}`,
		timedtext: `<timedtext format="3"><body><p t="0" d="1000">hi</p></body></timedtext>`,
	}
	y := newTestYouTube(t, f)

	entries, err := y.Fetch(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []transcript.Entry{{Text: "hi", Start: 0, Duration: 1}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if n := f.innertubeHits.Load(); n != 2 {
		t.Errorf("innertube hit %d times, want 2 (/next then /player)", n)
	}
}

func TestFetchEmptyID(t *testing.T) {
	y := NewYouTube(YouTubeConfig{})
	if _, err := y.Fetch(context.Background(), ""); !errors.Is(err, ErrNoTranscript) {
		t.Errorf("Fetch(\"\") error = %v, want ErrNoTranscript", err)
	}
}

func TestClassify(t *testing.T) {
	err := classify(fmt.Errorf("watch page: %w", &engine.StatusError{StatusCode: http.StatusTooManyRequests}))
	if !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("classify(429) = %v, want ErrTooManyRequests", err)
	}
	other := errors.New("x")
	if classify(other) != other {
		t.Error("classify changed an unrelated error")
	}
}
