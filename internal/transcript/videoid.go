package transcript

import (
	"net/url"
	"strings"
)

const (
	hostShort = "youtu.be"
	hostWWW   = "www.youtube.com"
	hostBare  = "youtube.com"
)

// VideoID extracts a YouTube video identifier from raw.
//
// youtu.be links carry the id in the path; www.youtube.com and youtube.com
// links carry it in the first non-blank "v" query value. Any other host,
// including none at all, yields no identifier. Parse failures are not errors.
//
// An empty path on youtu.be reports ("", true): present but empty.
func VideoID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	switch strings.ToLower(u.Hostname()) {
	case hostShort:
		p := u.EscapedPath()
		if p == "" {
			return "", true
		}
		return p[1:], true
	case hostWWW, hostBare:
		for _, v := range u.Query()["v"] {
			if v != "" {
				return v, true
			}
		}
		return "", false
	}
	return "", false
}

// VideoIDFrom is VideoID for an optional field. A nil raw resolves to no identifier.
func VideoIDFrom(raw *string) (string, bool) {
	if raw == nil {
		return "", false
	}
	return VideoID(*raw)
}
