package main

import (
	"lyrics-sync-go/cache"
	"lyrics-sync-go/lyrics"
)

// CacheDump represents the full cache contents
type CacheDump map[string]cache.Entry

// CachePerformance contains cache hit/miss statistics
type CachePerformance struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	NegativeHits int64   `json:"negative_hits"`
	HitRate      float64 `json:"hit_rate_percent"`
}

// CacheDumpResponse is the response format for /cache endpoint
type CacheDumpResponse struct {
	NumberOfKeys int              `json:"number_of_keys"`
	SizeInKB     int              `json:"size_kb"`
	SizeInMB     float64          `json:"size_mb"`
	Performance  CachePerformance `json:"performance"`
	Cache        CacheDump        `json:"cache,omitempty"`
}

// CachedLyrics is the cached form of a provider payload. The raw text is
// kept so it can be re-detected if the format registry changes.
type CachedLyrics struct {
	Raw             string `json:"raw"`
	Provider        string `json:"provider"`
	Synced          bool   `json:"synced"`
	TrackDurationMs int    `json:"trackDurationMs,omitempty"`
}

// DocumentResponse is the JSON view of a parsed lyrics document
type DocumentResponse struct {
	Track        lyrics.Track     `json:"track"`
	Synchronized bool             `json:"synchronized"`
	Valid        bool             `json:"valid"`
	Format       string           `json:"format,omitempty"`
	Text         string           `json:"text"`
	Lines        []lyrics.Line    `json:"lines,omitempty"`
	Metadata     *lyrics.Metadata `json:"metadata,omitempty"`
	OffsetMs     int              `json:"offsetMs,omitempty"`
	LeadInMs     int              `json:"leadInMs,omitempty"`
	Provider     string           `json:"provider,omitempty"`
}

// DetectResponse answers POST /detect
type DetectResponse struct {
	Synchronized bool   `json:"synchronized"`
	Format       string `json:"format,omitempty"`
}

// SessionLyricsRequest is the body of PUT /sessions/{id}/lyrics.
// Empty Lyrics means fetch them for Track.
type SessionLyricsRequest struct {
	Track  lyrics.Track `json:"track"`
	Lyrics string       `json:"lyrics"`
}

// OffsetRequest is the body of PUT /sessions/{id}/offset
type OffsetRequest struct {
	OffsetMs *int `json:"offsetMs"`
}

// newDocumentResponse flattens a document for the API
func newDocumentResponse(doc lyrics.Lyrics) DocumentResponse {
	resp := DocumentResponse{
		Track:        doc.Track(),
		Synchronized: doc.IsSynchronized(),
		Valid:        doc.IsValid(),
		Text:         doc.Text(),
	}
	if synced, ok := doc.(*lyrics.Synchronized); ok {
		metadata := synced.Metadata()
		resp.Format = synced.Format().Name()
		resp.Lines = synced.Lines()
		resp.Metadata = &metadata
		resp.OffsetMs = synced.Offset()
		resp.LeadInMs = synced.LeadIn()
	}
	return resp
}
