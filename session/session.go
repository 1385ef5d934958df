// Package session holds the lyrics document for each playback session and
// serializes access to it. Documents are not safe for concurrent use on
// their own, so every read and write goes through the session lock.
package session

import (
	"errors"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/stats"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoLyrics is returned when nothing has been loaded into the session
	ErrNoLyrics = errors.New("no lyrics loaded")
	// ErrNotSynchronized is returned for time lookups on plain or unparseable lyrics
	ErrNotSynchronized = errors.New("lyrics are not synchronized")
)

// Display is the two-line state a remote shows at a playback position
type Display struct {
	Previous    string `json:"previous"`
	Current     string `json:"current"`
	Next        string `json:"next"`
	Index       int    `json:"index"`
	StartMs     int    `json:"startTimeMs"`
	NextStartMs int    `json:"nextStartTimeMs"` // -1 on the last line
}

// Info summarizes a session for the API
type Info struct {
	ID           string       `json:"id"`
	Track        lyrics.Track `json:"track"`
	Loaded       bool         `json:"loaded"`
	Synchronized bool         `json:"synchronized"`
	Valid        bool         `json:"valid"`
	Format       string       `json:"format,omitempty"`
	Lines        int          `json:"lines"`
	OffsetMs     int          `json:"offsetMs"`
	LeadInMs     int          `json:"leadInMs"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastUsed     time.Time    `json:"lastUsed"`
}

// Session owns at most one lyrics document
type Session struct {
	mu       sync.Mutex
	id       string
	registry *lyrics.Registry
	doc      lyrics.Lyrics
	created  time.Time
	lastUsed time.Time
}

func newSession(id string, registry *lyrics.Registry) *Session {
	now := time.Now()
	return &Session{id: id, registry: registry, created: now, lastUsed: now}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Load parses raw and replaces the current document with it
func (s *Session) Load(track lyrics.Track, raw string) lyrics.Lyrics {
	doc := s.registry.Parse(track, raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.doc = doc

	log.Debugf("%s Loaded %T into session %s (synchronized: %v)", logcolors.LogSession, doc, s.id, doc.IsSynchronized())
	return doc
}

// Position resolves what to display at playback time timeMs
func (s *Session) Position(timeMs int) (Display, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	synced, err := s.synchronized()
	if err != nil {
		return Display{}, err
	}

	line, i, ok := synced.LineAt(timeMs)
	if !ok {
		return Display{}, ErrNotSynchronized
	}
	stats.Get().LineLookups.Add(1)

	d := Display{
		Current:     line.Text,
		Index:       i,
		StartMs:     line.StartMs,
		NextStartMs: -1,
	}
	if prev, ok := synced.LineByIndex(i - 1); ok {
		d.Previous = prev.Text
	}
	if next, ok := synced.LineByIndex(i + 1); ok {
		d.Next = next.Text
		d.NextStartMs = next.StartMs
	}
	return d, nil
}

// Text returns the normalized full text of the loaded lyrics
func (s *Session) Text() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.doc == nil {
		return "", ErrNoLyrics
	}
	return s.doc.Text(), nil
}

// SetOffset adjusts the timing of the loaded synchronized lyrics
func (s *Session) SetOffset(ms int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	synced, err := s.synchronized()
	if err != nil {
		return err
	}
	synced.SetOffset(ms)
	return nil
}

// Info returns a summary of the session
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:        s.id,
		CreatedAt: s.created,
		LastUsed:  s.lastUsed,
	}
	if s.doc == nil {
		return info
	}

	info.Loaded = true
	info.Track = s.doc.Track()
	info.Synchronized = s.doc.IsSynchronized()
	info.Valid = s.doc.IsValid()
	if synced, ok := s.doc.(*lyrics.Synchronized); ok {
		info.Format = synced.Format().Name()
		info.Lines = synced.LineCount()
		info.OffsetMs = synced.Offset()
		info.LeadInMs = synced.LeadIn()
	}
	return info
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// synchronized must be called with the lock held
func (s *Session) synchronized() (*lyrics.Synchronized, error) {
	if s.doc == nil {
		return nil, ErrNoLyrics
	}
	synced, ok := s.doc.(*lyrics.Synchronized)
	if !ok || !synced.IsValid() {
		return nil, ErrNotSynchronized
	}
	return synced, nil
}

func (s *Session) touch() {
	s.lastUsed = time.Now()
}
