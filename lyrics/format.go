package lyrics

// Line is a single timed line of lyrics
type Line struct {
	StartMs int    `json:"startTimeMs"`
	Text    string `json:"words"`
}

// Metadata holds the attribute tags a timed format may carry
type Metadata struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Author string `json:"author,omitempty"`
	Length string `json:"length,omitempty"`

	// OffsetMs is nil when the payload carries no offset tag
	OffsetMs *int `json:"offsetMs,omitempty"`
}

// Format is a timed-lyrics dialect.
//
// Validate must be cheap: it decides whether a payload belongs to the
// dialect without building the full line index. Parse never fails; lines
// it cannot read are skipped and an empty result means the payload is
// invalid for this dialect. A payload accepted by Validate must yield at
// least one line from Parse.
type Format interface {
	// Name returns the dialect identifier (e.g., "lrc")
	Name() string

	// Validate reports whether data looks like this dialect
	Validate(data string) bool

	// Parse extracts timed lines and attribute tags from data, in any order
	Parse(data string) ([]Line, Metadata)
}
