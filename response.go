package main

import (
	"encoding/json"
	"net/http"

	"lyrics-sync-go/middleware"
)

// plainFormat is reported in X-Lyrics-Format for documents without timing
const plainFormat = "plain"

// APIResponse writes JSON bodies with the service headers. Handlers chain the
// setters they need and finish with JSON, Document or Message.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
	provider    string
	format      string
}

func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets X-Cache-Status (HIT, MISS, SHARED, NEGATIVE_HIT)
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// SetProvider sets X-Provider to the source the raw lyrics came from
func (a *APIResponse) SetProvider(provider string) *APIResponse {
	a.provider = provider
	return a
}

// SetFormat sets X-Lyrics-Format to the detected dialect
func (a *APIResponse) SetFormat(format string) *APIResponse {
	a.format = format
	return a
}

func (a *APIResponse) write(statusCode int, data interface{}) error {
	h := a.w.Header()
	h.Set("Content-Type", "application/json")

	for name, value := range map[string]string{
		"X-Cache-Status":  a.cacheStatus,
		"X-Provider":      a.provider,
		"X-Lyrics-Format": a.format,
	} {
		if value != "" {
			h.Set(name, value)
		}
	}
	if middleware.IsAuthenticated(a.r.Context()) {
		h.Set("X-Auth-Mode", "authenticated")
	}

	if statusCode != http.StatusOK {
		a.w.WriteHeader(statusCode)
	}
	return json.NewEncoder(a.w).Encode(data)
}

// JSON encodes data with 200 OK
func (a *APIResponse) JSON(data interface{}) error {
	return a.write(http.StatusOK, data)
}

// Document encodes a lyrics document, reporting its format in the headers
func (a *APIResponse) Document(doc DocumentResponse) error {
	if a.format == "" {
		a.format = doc.Format
		if !doc.Synchronized {
			a.format = plainFormat
		}
	}
	return a.write(http.StatusOK, doc)
}

// Error encodes data with the given status
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	return a.write(statusCode, data)
}

// Message writes an {"error": message} body
func (a *APIResponse) Message(statusCode int, message string) error {
	return a.write(statusCode, map[string]interface{}{"error": message})
}
