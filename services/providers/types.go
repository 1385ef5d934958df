package providers

import (
	"errors"
	"time"

	"lyrics-sync-go/circuitbreaker"
)

// ErrNotFound marks a permanent "this track has no lyrics" answer.
// Only errors wrapping it are remembered in the negative cache.
var ErrNotFound = errors.New("no lyrics found")

// LyricsResult is a raw payload fetched from a provider.
// RawLyrics is handed to the lyrics registry for format detection.
type LyricsResult struct {
	RawLyrics       string    `json:"rawLyrics"`
	Synced          bool      `json:"synced"`
	Instrumental    bool      `json:"instrumental,omitempty"`
	TrackDurationMs int       `json:"trackDurationMs,omitempty"`
	Provider        string    `json:"provider"`
	FetchedAt       time.Time `json:"fetchedAt"`
}

// ProviderError represents an error from a provider with additional context
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// IsNotFound reports whether err is a permanent "no lyrics" result
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Guarded is implemented by providers that sit behind a circuit breaker
type Guarded interface {
	Breaker() *circuitbreaker.CircuitBreaker
}
