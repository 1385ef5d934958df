package lyrics

import (
	"math"
	"strconv"
	"strings"
	"testing"
)

// stampFormat is a minimal dialect for tests: one "ms|text" entry per line
type stampFormat struct {
	name        string
	parseCalls  int
	checkCalls  int
	panicOnTest bool
	panicOnRead bool
}

func (f *stampFormat) Name() string {
	if f.name == "" {
		return "stamp"
	}
	return f.name
}

func (f *stampFormat) Validate(data string) bool {
	f.checkCalls++
	if f.panicOnTest {
		panic("probe exploded")
	}
	for _, raw := range strings.Split(data, "\n") {
		if _, _, ok := parseStamp(raw); ok {
			return true
		}
	}
	return false
}

func (f *stampFormat) Parse(data string) ([]Line, Metadata) {
	f.parseCalls++
	if f.panicOnRead {
		panic("parse exploded")
	}
	var lines []Line
	for _, raw := range strings.Split(data, "\n") {
		if ms, text, ok := parseStamp(raw); ok {
			lines = append(lines, Line{StartMs: ms, Text: text})
		}
	}
	return lines, Metadata{}
}

func parseStamp(raw string) (int, string, bool) {
	ts, text, found := strings.Cut(raw, "|")
	if !found {
		return 0, "", false
	}
	ms, err := strconv.Atoi(ts)
	if err != nil || ms < 0 {
		return 0, "", false
	}
	return ms, text, true
}

func newStampDoc(data string, opts ...Option) (*Synchronized, *stampFormat) {
	f := &stampFormat{}
	return NewSynchronized(Track{ID: "track-1"}, data, f, opts...), f
}

func TestSynchronized_ParseIsIdempotent(t *testing.T) {
	doc, f := newStampDoc("0|Hello\n5000|World")

	doc.Parse(false)
	first := doc.Lines()
	firstValid := doc.IsValid()

	doc.Parse(false)
	second := doc.Lines()

	if f.parseCalls != 1 {
		t.Errorf("Expected format to be parsed once, got %d calls", f.parseCalls)
	}
	if len(first) != len(second) {
		t.Fatalf("Expected %d lines after second parse, got %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Line %d changed between parses: %+v vs %+v", i, first[i], second[i])
		}
	}
	if firstValid != doc.IsValid() {
		t.Errorf("Expected validity to stay %v", firstValid)
	}
}

func TestSynchronized_CheckThenFullParse(t *testing.T) {
	doc, f := newStampDoc("0|Hello\n5000|World")

	if !doc.IsValid() {
		t.Fatal("Expected check-mode parse to report valid")
	}
	if f.parseCalls != 0 {
		t.Errorf("Expected check mode not to run a full parse, got %d calls", f.parseCalls)
	}

	// repeated checks validate once
	doc.IsValid()
	if f.checkCalls != 1 {
		t.Errorf("Expected one validation, got %d", f.checkCalls)
	}

	doc.Parse(false)
	if f.parseCalls != 1 {
		t.Errorf("Expected full parse after check, got %d calls", f.parseCalls)
	}
	if got := len(doc.Lines()); got != 2 {
		t.Errorf("Expected 2 lines, got %d", got)
	}
}

func TestSynchronized_LeadIn(t *testing.T) {
	doc, _ := newStampDoc("0|zero\n5000|five\n10000|ten")

	tests := []struct {
		timeMs   int
		expected string
	}{
		{timeMs: 5400, expected: "five"},
		{timeMs: 4600, expected: "five"}, // 5100 after lead-in
		{timeMs: 4400, expected: "zero"}, // 4900 after lead-in
		{timeMs: 4500, expected: "five"}, // exactly on the boundary
		{timeMs: 9499, expected: "five"},
		{timeMs: 9500, expected: "ten"},
		{timeMs: 600000, expected: "ten"},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.timeMs), func(t *testing.T) {
			if got := doc.Line(tt.timeMs); got != tt.expected {
				t.Errorf("Line(%d) = %q, expected %q", tt.timeMs, got, tt.expected)
			}
		})
	}
}

func TestSynchronized_FloorFallback(t *testing.T) {
	doc, _ := newStampDoc("3000|first\n8000|second")

	for _, timeMs := range []int{-100000, -1, 0, 1000, 2499} {
		if got := doc.Line(timeMs); got != "first" {
			t.Errorf("Line(%d) = %q, expected first line", timeMs, got)
		}
	}
}

func TestSynchronized_NonMonotonicQueries(t *testing.T) {
	doc, _ := newStampDoc("0|a\n1000|b\n2000|c")

	queries := []struct {
		timeMs   int
		expected string
	}{
		{1600, "c"},
		{0, "a"},
		{1600, "c"},
		{700, "b"},
		{700, "b"},
		{-5000, "a"},
	}

	for _, q := range queries {
		if got := doc.Line(q.timeMs); got != q.expected {
			t.Errorf("Line(%d) = %q, expected %q", q.timeMs, got, q.expected)
		}
	}
}

func TestSynchronized_Offset(t *testing.T) {
	doc, _ := newStampDoc("0|zero\n5000|five")

	if got := doc.Line(4000); got != "zero" {
		t.Fatalf("Expected zero without offset, got %q", got)
	}

	doc.SetOffset(600)
	if got := doc.Line(4000); got != "five" {
		t.Errorf("Expected five with +600ms offset, got %q", got)
	}

	doc.SetOffset(-2000)
	if got := doc.Line(6000); got != "zero" {
		t.Errorf("Expected zero with -2000ms offset, got %q", got)
	}
	if doc.Offset() != -2000 {
		t.Errorf("Expected offset -2000, got %d", doc.Offset())
	}
}

func TestSynchronized_OffsetBeforeParse(t *testing.T) {
	doc, f := newStampDoc("0|zero\n5000|five")

	doc.SetOffset(1000)
	if f.parseCalls != 0 {
		t.Fatal("Expected SetOffset not to trigger a parse")
	}
	if got := doc.Line(3600); got != "five" {
		t.Errorf("Expected five, got %q", got)
	}
}

func TestSynchronized_CustomLeadIn(t *testing.T) {
	doc, _ := newStampDoc("0|zero\n5000|five", WithLeadIn(0))

	if got := doc.Line(4999); got != "zero" {
		t.Errorf("Expected zero without lead-in, got %q", got)
	}
	if got := doc.Line(5000); got != "five" {
		t.Errorf("Expected five at its own timestamp, got %q", got)
	}
	if doc.LeadIn() != 0 {
		t.Errorf("Expected lead-in 0, got %d", doc.LeadIn())
	}
}

func TestSynchronized_SortsAndDeduplicates(t *testing.T) {
	doc, _ := newStampDoc("9000|late\n1000|early\n5000|middle\n1000|early again")

	lines := doc.Lines()
	expected := []Line{
		{StartMs: 1000, Text: "early again"},
		{StartMs: 5000, Text: "middle"},
		{StartMs: 9000, Text: "late"},
	}

	if len(lines) != len(expected) {
		t.Fatalf("Expected %d lines, got %d: %+v", len(expected), len(lines), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("lines[%d] = %+v, expected %+v", i, lines[i], expected[i])
		}
	}
}

func TestSynchronized_LinesReturnsCopy(t *testing.T) {
	doc, _ := newStampDoc("0|a\n1000|b")

	lines := doc.Lines()
	lines[0].Text = "mutated"

	if got := doc.Line(0); got != "a" {
		t.Errorf("Expected internal index untouched, got %q", got)
	}
}

func TestSynchronized_LineByIndex(t *testing.T) {
	doc, f := newStampDoc("2000|c\n0|a\n1000|b")

	if got := doc.LineCount(); got != 3 {
		t.Fatalf("Expected 3 lines, got %d", got)
	}

	tests := []struct {
		index    int
		expected string
		ok       bool
	}{
		{index: -1, ok: false},
		{index: 0, expected: "a", ok: true},
		{index: 2, expected: "c", ok: true},
		{index: 3, ok: false},
	}
	for _, tt := range tests {
		line, ok := doc.LineByIndex(tt.index)
		if ok != tt.ok || line.Text != tt.expected {
			t.Errorf("LineByIndex(%d) = %q, %v; expected %q, %v", tt.index, line.Text, ok, tt.expected, tt.ok)
		}
	}
	if f.parseCalls != 1 {
		t.Errorf("Expected a single parse, got %d", f.parseCalls)
	}
}

func TestSynchronized_LineAt(t *testing.T) {
	doc, _ := newStampDoc("0|a\n1000|b\n2000|c")

	line, idx, ok := doc.LineAt(1200)
	if !ok {
		t.Fatal("Expected a line")
	}
	if idx != 1 || line.Text != "b" || line.StartMs != 1000 {
		t.Errorf("Unexpected result: idx=%d line=%+v", idx, line)
	}

	empty, _ := newStampDoc("no timed lines here")
	if _, idx, ok := empty.LineAt(0); ok || idx != -1 {
		t.Errorf("Expected no line for an invalid document, got idx=%d ok=%v", idx, ok)
	}
}

func TestSynchronized_LinePanicsWithoutLines(t *testing.T) {
	doc, _ := newStampDoc("garbage")

	defer func() {
		if recover() == nil {
			t.Error("Expected Line to panic on a document without timed lines")
		}
	}()
	doc.Line(0)
}

func TestSynchronized_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "Empty", data: ""},
		{name: "Whitespace", data: "   \n\n "},
		{name: "No stamps", data: "just some words\nmore words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _ := newStampDoc(tt.data)
			doc.Parse(false)

			if doc.IsValid() {
				t.Error("Expected document to be invalid")
			}
			if !doc.IsSynchronized() {
				t.Error("Expected timed documents to report synchronized even when invalid")
			}
			if got := doc.Text(); got != strings.TrimSpace(tt.data) {
				t.Errorf("Expected raw text fallback %q, got %q", strings.TrimSpace(tt.data), got)
			}
		})
	}
}

func TestSynchronized_Text(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		lineBreak string
		expected  string
	}{
		{
			name:     "Ascending order",
			data:     "5000|World\n0|Hello",
			expected: "Hello\nWorld",
		},
		{
			name:      "CRLF break",
			data:      "0|Hello\n5000|World",
			lineBreak: "\r\n",
			expected:  "Hello\r\nWorld",
		},
		{
			name:     "Blank gap lines collapse",
			data:     "0|Verse\n1000|\n2000|\n3000|\n4000|Chorus",
			expected: "Verse\n\nChorus",
		},
		{
			name:     "Single blank line kept",
			data:     "0|Verse\n1000|\n2000|Chorus",
			expected: "Verse\n\nChorus",
		},
		{
			name:     "Trailing blanks trimmed",
			data:     "0|Only\n1000|\n2000|",
			expected: "Only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _ := newStampDoc(tt.data, WithLineBreak(tt.lineBreak))
			if got := doc.Text(); got != tt.expected {
				t.Errorf("Text() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestSynchronized_TrackPassThrough(t *testing.T) {
	track := Track{ID: "abc", Name: "Song", Artist: "Artist", DurationMs: 1234}
	doc := NewSynchronized(track, "0|a", &stampFormat{})

	if doc.Track() != track {
		t.Errorf("Expected track %+v, got %+v", track, doc.Track())
	}
	if doc.Data() != "0|a" {
		t.Errorf("Expected raw data to be kept, got %q", doc.Data())
	}
}

type offsetFormat struct {
	stampFormat
	offset int
}

func (f *offsetFormat) Parse(data string) ([]Line, Metadata) {
	lines, _ := f.stampFormat.Parse(data)
	offset := f.offset
	return lines, Metadata{Title: "tagged", OffsetMs: &offset}
}

func TestSynchronized_MetadataOffset(t *testing.T) {
	doc := NewSynchronized(Track{}, "0|zero\n5000|five", &offsetFormat{offset: 1000})

	if got := doc.Line(3600); got != "five" {
		t.Errorf("Expected tag offset to apply, got %q", got)
	}
	if doc.Offset() != 1000 {
		t.Errorf("Expected offset 1000, got %d", doc.Offset())
	}
	if doc.Metadata().Title != "tagged" {
		t.Errorf("Expected metadata title, got %q", doc.Metadata().Title)
	}

	explicit := NewSynchronized(Track{}, "0|zero\n5000|five", &offsetFormat{offset: 1000})
	explicit.SetOffset(0)
	if got := explicit.Line(3600); got != "zero" {
		t.Errorf("Expected caller offset to win over the tag, got %q", got)
	}
}

func TestSynchronized_ValidatePanicMeansInvalid(t *testing.T) {
	f := &stampFormat{panicOnTest: true}
	doc := NewSynchronized(Track{}, "0|Hello", f)

	if doc.IsValid() {
		t.Error("Expected a panicking validation to report invalid")
	}
	if f.parseCalls != 0 {
		t.Errorf("Expected check mode not to run a full parse, got %d", f.parseCalls)
	}
}

func TestSynchronized_ParsePanicMeansInvalid(t *testing.T) {
	f := &stampFormat{panicOnRead: true}
	doc := NewSynchronized(Track{}, "0|Hello\n\n\n\n1000|World", f)

	if _, _, ok := doc.LineAt(0); ok {
		t.Error("Expected no line after a panicking parse")
	}
	if doc.IsValid() {
		t.Error("Expected document to be invalid")
	}
	if doc.LineCount() != 0 || len(doc.Lines()) != 0 {
		t.Error("Expected no lines")
	}
	if got := doc.Text(); got != "0|Hello\n\n1000|World" {
		t.Errorf("Expected normalized raw text, got %q", got)
	}
	if f.parseCalls != 1 {
		t.Errorf("Expected the failed parse not to be retried, got %d calls", f.parseCalls)
	}
}

// fixedFormat returns a preset list of lines regardless of input
type fixedFormat struct {
	lines []Line
}

func (fixedFormat) Name() string { return "fixed" }

func (fixedFormat) Validate(data string) bool { return true }

func (f fixedFormat) Parse(data string) ([]Line, Metadata) {
	return f.lines, Metadata{}
}

func TestSynchronized_SortsExtremeTimestamps(t *testing.T) {
	f := fixedFormat{lines: []Line{
		{StartMs: math.MaxInt, Text: "end"},
		{StartMs: math.MinInt, Text: "start"},
		{StartMs: 0, Text: "middle"},
	}}
	doc := NewSynchronized(Track{}, "x", f)

	lines := doc.Lines()
	var got []string
	for _, line := range lines {
		got = append(got, line.Text)
	}
	if strings.Join(got, ",") != "start,middle,end" {
		t.Errorf("Expected ascending order, got %v", got)
	}
}

func TestSynchronized_OffsetIsClamped(t *testing.T) {
	doc, _ := newStampDoc("0|zero\n5000|five")

	doc.SetOffset(math.MaxInt)
	if doc.Offset() != MaxOffsetMs {
		t.Errorf("Expected offset clamped to %d, got %d", MaxOffsetMs, doc.Offset())
	}
	if got := doc.Line(0); got != "five" {
		t.Errorf("Expected five with the maximum offset, got %q", got)
	}

	doc.SetOffset(math.MinInt)
	if doc.Offset() != -MaxOffsetMs {
		t.Errorf("Expected offset clamped to %d, got %d", -MaxOffsetMs, doc.Offset())
	}
	if got := doc.Line(6000); got != "zero" {
		t.Errorf("Expected zero with the minimum offset, got %q", got)
	}

	tagged := NewSynchronized(Track{}, "0|zero\n5000|five", &offsetFormat{offset: math.MinInt})
	if got := tagged.Line(10000); got != "zero" {
		t.Errorf("Expected zero with a clamped tag offset, got %q", got)
	}
	if tagged.Offset() != -MaxOffsetMs {
		t.Errorf("Expected tag offset clamped to %d, got %d", -MaxOffsetMs, tagged.Offset())
	}
}

func TestClampOffset(t *testing.T) {
	tests := []struct {
		in       int
		expected int
	}{
		{in: 0, expected: 0},
		{in: -2500, expected: -2500},
		{in: MaxOffsetMs, expected: MaxOffsetMs},
		{in: MaxOffsetMs + 1, expected: MaxOffsetMs},
		{in: math.MinInt, expected: -MaxOffsetMs},
	}
	for _, tt := range tests {
		if got := ClampOffset(tt.in); got != tt.expected {
			t.Errorf("ClampOffset(%d) = %d, expected %d", tt.in, got, tt.expected)
		}
	}
}
