package transcript

import "testing"

func TestVideoID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantID string
		wantOK bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"bare host", "https://youtube.com/watch?v=abc123", "abc123", true},
		{"extra params", "https://www.youtube.com/watch?v=abc123&t=42s&list=PL1", "abc123", true},
		{"v not first", "https://www.youtube.com/watch?feature=share&v=abc123", "abc123", true},
		{"uppercase host", "https://WWW.YouTube.com/watch?v=abc123", "abc123", true},
		{"short link", "https://youtu.be/abc123", "abc123", true},
		{"short link with query", "https://youtu.be/abc123?t=10", "abc123", true},
		{"short link empty path", "https://youtu.be", "", true},
		{"short link root", "https://youtu.be/", "", true},
		{"missing v", "https://www.youtube.com/watch", "", false},
		{"blank v", "https://www.youtube.com/watch?v=", "", false},
		{"blank then value", "https://www.youtube.com/watch?v=&v=xyz", "xyz", true},
		{"mobile host", "https://m.youtube.com/watch?v=abc123", "", false},
		{"other host", "https://vimeo.com/12345", "", false},
		{"not a url", "not a url", "", false},
		{"empty", "", "", false},
		{"unparseable", "http://[::1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := VideoID(tt.raw)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("VideoID(%q) = (%q, %v), want (%q, %v)", tt.raw, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestVideoIDFrom(t *testing.T) {
	if id, ok := VideoIDFrom(nil); id != "" || ok {
		t.Errorf("VideoIDFrom(nil) = (%q, %v), want (\"\", false)", id, ok)
	}
	raw := "https://youtu.be/xyz"
	if id, ok := VideoIDFrom(&raw); id != "xyz" || !ok {
		t.Errorf("VideoIDFrom(%q) = (%q, %v), want (\"xyz\", true)", raw, id, ok)
	}
}
