// Package lrc implements the LRC timed-lyrics dialect:
//
//	[ti:Song title]
//	[ar:Artist]
//	[offset:+250]
//	[00:12.00]First line
//	[00:15.30][01:02.10]Repeated line
package lrc

import (
	"regexp"
	"strconv"
	"strings"

	"lyrics-sync-go/lyrics"
)

// FormatName is the identifier the LRC dialect registers under
const FormatName = "lrc"

var (
	// Leading time tag: [mm:ss], [mm:ss.x], [mm:ss.xx] or [mm:ss.xxx], '.' or ':' before the fraction
	timeTagRegex = regexp.MustCompile(`^\[(\d{1,3}):(\d{2})(?:[.:](\d{1,3}))?\]`)

	// Attribute tags: [tag:value]
	attributeRegex = regexp.MustCompile(`^\[([a-zA-Z]+):([^\]]*)\]$`)
)

// Format parses LRC payloads. The zero value is ready to use.
type Format struct{}

// New returns the LRC format
func New() *Format {
	return &Format{}
}

func (f *Format) Name() string {
	return FormatName
}

// Validate reports whether at least one line starts with a well-formed time
// tag. It stops at the first such line.
func (f *Format) Validate(data string) bool {
	for _, rawLine := range splitLines(data) {
		if timeTagRegex.MatchString(rawLine) {
			return true
		}
	}
	return false
}

// Parse extracts every tagged line. Lines with several leading tags produce
// one entry per tag; lines without a readable leading tag are skipped.
func (f *Format) Parse(data string) ([]lyrics.Line, lyrics.Metadata) {
	var lines []lyrics.Line
	var metadata lyrics.Metadata

	for _, rawLine := range splitLines(data) {
		if rawLine == "" {
			continue
		}

		if matches := attributeRegex.FindStringSubmatch(rawLine); len(matches) == 3 {
			applyAttribute(&metadata, strings.ToLower(matches[1]), strings.TrimSpace(matches[2]))
			continue
		}

		timestamps, text := splitTimeTags(rawLine)
		if len(timestamps) == 0 {
			continue
		}

		for _, startMs := range timestamps {
			lines = append(lines, lyrics.Line{StartMs: startMs, Text: text})
		}
	}

	return lines, metadata
}

// splitTimeTags consumes the time tags at the start of line and returns their
// values in milliseconds together with the remaining text.
func splitTimeTags(line string) ([]int, string) {
	var timestamps []int
	rest := line

	for {
		match := timeTagRegex.FindStringSubmatch(rest)
		if match == nil {
			break
		}

		ms, ok := tagToMs(match[1], match[2], match[3])
		if !ok {
			break
		}
		timestamps = append(timestamps, ms)
		rest = rest[len(match[0]):]
	}

	return timestamps, strings.TrimSpace(rest)
}

// tagToMs converts the captured minutes, seconds and fraction to milliseconds
func tagToMs(minutesPart, secondsPart, fractionPart string) (int, bool) {
	minutes, err := strconv.Atoi(minutesPart)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(secondsPart)
	if err != nil {
		return 0, false
	}

	millis := 0
	if fractionPart != "" {
		fraction, err := strconv.Atoi(fractionPart)
		if err != nil {
			return 0, false
		}
		switch len(fractionPart) {
		case 1:
			millis = fraction * 100 // tenths
		case 2:
			millis = fraction * 10 // hundredths
		default:
			millis = fraction
		}
	}

	return minutes*60*1000 + seconds*1000 + millis, true
}

func applyAttribute(metadata *lyrics.Metadata, tag, value string) {
	switch tag {
	case "ti":
		metadata.Title = value
	case "ar":
		metadata.Artist = value
	case "al":
		metadata.Album = value
	case "by":
		metadata.Author = value
	case "length":
		metadata.Length = value
	case "offset":
		if offset, err := strconv.Atoi(strings.ReplaceAll(value, " ", "")); err == nil {
			offset = lyrics.ClampOffset(offset)
			metadata.OffsetMs = &offset
		}
	}
}

// splitLines splits data into trimmed lines, dropping a leading BOM
func splitLines(data string) []string {
	data = strings.TrimPrefix(data, "\ufeff")
	rawLines := strings.Split(data, "\n")
	for i, rawLine := range rawLines {
		rawLines[i] = strings.TrimSpace(rawLine)
	}
	return rawLines
}
