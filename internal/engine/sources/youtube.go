// Package sources implements the upstream caption fetchers.
package sources

// YouTube implementation is split across two files by responsibility:
//   youtube_innertube.go:  Innertube API types, constants, and low-level HTTP primitives
//   youtube_transcript.go: caption fetching (watch page, engagement panel, ANDROID player)
