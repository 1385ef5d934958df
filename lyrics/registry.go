package lyrics

import (
	"sync"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// Registry detects which timed format a payload uses. Formats are tried in
// registration order and the first one that validates wins, so stricter
// dialects must be registered before looser ones.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
	opts    []Option
}

// NewRegistry creates a registry over formats, in priority order. The
// options apply to every document the registry produces.
func NewRegistry(formats []Format, opts ...Option) *Registry {
	return &Registry{
		formats: append([]Format(nil), formats...),
		opts:    opts,
	}
}

// Register appends a format with the lowest priority
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append(r.formats, f)
}

// Formats returns the registered format names in priority order
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.formats))
	for i, f := range r.formats {
		names[i] = f.Name()
	}
	return names
}

// Detect returns the first format that validates data
func (r *Registry) Detect(data string) (Format, bool) {
	if data == "" {
		return nil, false
	}

	r.mu.RLock()
	formats := r.formats
	r.mu.RUnlock()

	for _, f := range formats {
		if probe(f, data) {
			return f, true
		}
	}
	return nil, false
}

// IsSynchronized reports whether any registered format accepts data
func (r *Registry) IsSynchronized(data string) bool {
	_, ok := r.Detect(data)
	return ok
}

// Parse builds the document for data. The first validating format yields a
// fully parsed *Synchronized; when none matches the raw text is wrapped in a
// *Plain document. Parse never fails.
func (r *Registry) Parse(track Track, data string) Lyrics {
	if f, ok := r.Detect(data); ok {
		return NewSynchronized(track, data, f, r.opts...).Parse(false)
	}
	return NewPlain(track, data, r.opts...)
}

// probe runs a format's validation, treating a panic as a rejection
func probe(f Format, data string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Debugf("%s Format %s failed while probing: %v", logcolors.LogDetect, f.Name(), rec)
			ok = false
		}
	}()
	return f.Validate(data)
}
