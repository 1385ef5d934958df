package lyrics

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// Synchronized is a timed-line index over a raw payload of some Format.
//
// Parsing is lazy and happens at most once. A check-mode parse only runs the
// format's validation and leaves the document unparsed, so a later full
// parse still builds the index. Once parsed the lines never change; only the
// offset stays adjustable.
//
// A Synchronized document is not safe for concurrent use. Callers sharing
// one across goroutines must serialize access themselves.
type Synchronized struct {
	track  Track
	data   string
	format Format
	opts   options

	lines    []Line
	metadata Metadata

	offset    int
	offsetSet bool

	checked bool
	parsed  bool
	valid   bool
}

// NewSynchronized binds track and data to a document of the given format.
// Nothing is parsed until the document is first used.
func NewSynchronized(track Track, data string, format Format, opts ...Option) *Synchronized {
	return &Synchronized{
		track:  track,
		data:   data,
		format: format,
		opts:   buildOptions(opts),
	}
}

func (s *Synchronized) Track() Track { return s.track }

func (s *Synchronized) Data() string { return s.data }

// Format returns the dialect the document was bound to
func (s *Synchronized) Format() Format { return s.format }

// IsSynchronized is always true for timed documents, valid or not.
func (s *Synchronized) IsSynchronized() bool { return true }

// IsValid runs a check-mode parse if needed and reports validity
func (s *Synchronized) IsValid() bool {
	s.Parse(true)
	return s.valid
}

// Parse validates (check) or fully parses the payload. Repeated calls after
// a full parse are no-ops.
func (s *Synchronized) Parse(check bool) *Synchronized {
	if s.parsed {
		return s
	}

	if check {
		if !s.checked {
			s.valid = s.data != "" && probe(s.format, s.data)
			s.checked = true
		}
		return s
	}

	var lines []Line
	var metadata Metadata
	if s.data != "" {
		lines, metadata = parseSafely(s.format, s.data)
	}

	s.lines = indexLines(lines)
	s.metadata = metadata
	s.valid = len(s.lines) > 0
	s.checked = true
	s.parsed = true

	if metadata.OffsetMs != nil && !s.offsetSet {
		s.offset = ClampOffset(*metadata.OffsetMs)
	}

	return s
}

// parseSafely runs a format's parser. A panic yields no lines, which leaves
// the document invalid.
func parseSafely(f Format, data string) (lines []Line, metadata Metadata) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warnf("%s Format %s failed while parsing: %v", logcolors.LogDetect, f.Name(), rec)
			lines, metadata = nil, Metadata{}
		}
	}()
	return f.Parse(data)
}

// indexLines sorts lines by start time, keeping the last text seen for a
// repeated timestamp.
func indexLines(lines []Line) []Line {
	if len(lines) == 0 {
		return nil
	}

	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b Line) int {
		return cmp.Compare(a.StartMs, b.StartMs)
	})

	out := sorted[:0]
	for _, line := range sorted {
		if n := len(out); n > 0 && out[n-1].StartMs == line.StartMs {
			out[n-1] = line
			continue
		}
		out = append(out, line)
	}
	return out
}

// Offset returns the current offset in milliseconds
func (s *Synchronized) Offset() int {
	return s.offset
}

// SetOffset shifts every later lookup by ms. Positive values show lines earlier.
// Offsets beyond MaxOffsetMs in either direction are clamped.
func (s *Synchronized) SetOffset(ms int) {
	s.offset = ClampOffset(ms)
	s.offsetSet = true
}

// LeadIn returns the fixed lead-in added to every lookup
func (s *Synchronized) LeadIn() int {
	return s.opts.leadInMs
}

// Lines returns a copy of the parsed lines in ascending order
func (s *Synchronized) Lines() []Line {
	s.Parse(false)
	return slices.Clone(s.lines)
}

// LineCount returns the number of timed lines
func (s *Synchronized) LineCount() int {
	s.Parse(false)
	return len(s.lines)
}

// LineByIndex returns the i-th timed line in ascending order
func (s *Synchronized) LineByIndex(i int) (Line, bool) {
	s.Parse(false)
	if i < 0 || i >= len(s.lines) {
		return Line{}, false
	}
	return s.lines[i], true
}

// Metadata returns the attribute tags found while parsing
func (s *Synchronized) Metadata() Metadata {
	s.Parse(false)
	return s.metadata
}

// LineAt resolves the line showing at playback time timeMs. It returns the
// line, its index, and false when the document has no timed lines.
func (s *Synchronized) LineAt(timeMs int) (Line, int, bool) {
	s.Parse(false)
	if len(s.lines) == 0 {
		return Line{}, -1, false
	}

	t := timeMs + s.offset + s.opts.leadInMs

	// first line starting after t, the one before it is showing
	i := sort.Search(len(s.lines), func(i int) bool {
		return s.lines[i].StartMs > t
	})
	if i == 0 {
		return s.lines[0], 0, true
	}
	return s.lines[i-1], i - 1, true
}

// Line returns the text showing at playback time timeMs. Times before the
// first line resolve to the first line.
//
// Line panics when the document holds no timed lines; check IsValid first.
func (s *Synchronized) Line(timeMs int) string {
	line, _, ok := s.LineAt(timeMs)
	if !ok {
		panic(fmt.Sprintf("lyrics: Line(%d) called on a %s document without timed lines", timeMs, s.format.Name()))
	}
	return line.Text
}

// Text rebuilds the lyrics from the timed lines, or falls back to the raw
// payload when parsing produced nothing.
func (s *Synchronized) Text() string {
	s.Parse(false)
	if !s.valid {
		return normalizeText(s.data, s.opts.lineBreak)
	}

	var sb strings.Builder
	for _, line := range s.lines {
		sb.WriteString(line.Text)
		sb.WriteString(s.opts.lineBreak)
	}
	return normalizeText(sb.String(), s.opts.lineBreak)
}
