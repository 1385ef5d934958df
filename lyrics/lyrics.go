package lyrics

import (
	"regexp"
	"strings"
)

const (
	// DefaultLeadInMs shifts every lookup forward so a line is shown slightly
	// before its nominal timestamp.
	DefaultLeadInMs = 500

	// DefaultLineBreak is the break used when rebuilding text from timed lines
	DefaultLineBreak = "\n"

	// MaxOffsetMs bounds the timing offset in either direction
	MaxOffsetMs = 60 * 60 * 1000
)

// ClampOffset limits ms to [-MaxOffsetMs, MaxOffsetMs]
func ClampOffset(ms int) int {
	return max(-MaxOffsetMs, min(ms, MaxOffsetMs))
}

// Runs of three or more line breaks collapse to a single blank line
var blankRunRegex = regexp.MustCompile(`(\r?\n){3,}`)

// Track identifies the track a document belongs to. The engine carries it
// along for association only and never inspects it.
type Track struct {
	ID         string `json:"id,omitempty"`
	URI        string `json:"uri,omitempty"`
	Name       string `json:"name,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	DurationMs int    `json:"durationMs,omitempty"`
}

// Lyrics is a displayable lyrics document, synchronized or not
type Lyrics interface {
	// Track returns the track reference the document was bound to
	Track() Track

	// Data returns the raw payload the document was bound to
	Data() string

	// Text returns the normalized displayable text
	Text() string

	// IsSynchronized reports whether timed lookups are meaningful for this document
	IsSynchronized() bool

	// IsValid reports whether the document parsed successfully
	IsValid() bool
}

// Plain is the unsynchronized document used when no timed format matches.
type Plain struct {
	track     Track
	data      string
	lineBreak string
}

// NewPlain binds track and data to a plain document
func NewPlain(track Track, data string, opts ...Option) *Plain {
	o := buildOptions(opts)
	return &Plain{track: track, data: data, lineBreak: o.lineBreak}
}

func (p *Plain) Track() Track { return p.track }

func (p *Plain) Data() string { return p.data }

func (p *Plain) Text() string { return normalizeText(p.data, p.lineBreak) }

func (p *Plain) IsSynchronized() bool { return false }

// IsValid is always true: raw text is displayable as is.
func (p *Plain) IsValid() bool { return true }

// normalizeText trims the text and collapses runs of three or more line
// breaks down to exactly one blank line.
func normalizeText(text, lineBreak string) string {
	text = strings.TrimSpace(text)
	return blankRunRegex.ReplaceAllLiteralString(text, lineBreak+lineBreak)
}
