package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/middleware"
)

// authenticatedRequest runs r through the API key middleware with a valid key
// and returns the request as the handler would see it
func authenticatedRequest(t *testing.T, r *http.Request) *http.Request {
	t.Helper()
	var seen *http.Request
	r.Header.Set("X-API-Key", "secret")
	middleware.APIKeyMiddleware("secret", false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
	})).ServeHTTP(httptest.NewRecorder(), r)
	if seen == nil {
		t.Fatal("API key middleware did not call the handler")
	}
	return seen
}

func TestAPIResponse_Headers(t *testing.T) {
	plainDoc := newDocumentResponse(lyrics.NewRegistry([]lyrics.Format{}).Parse(lyrics.Track{}, "words"))

	tests := []struct {
		name          string
		authenticated bool
		write         func(a *APIResponse)
		wantStatus    int
		wantHeaders   map[string]string
	}{
		{
			name:       "Fresh fetch",
			write:      func(a *APIResponse) { a.SetCacheStatus(cacheMiss).SetProvider("lrclib").JSON(struct{}{}) },
			wantStatus: http.StatusOK,
			wantHeaders: map[string]string{
				"X-Cache-Status": "MISS", "X-Provider": "lrclib", "X-Lyrics-Format": "", "X-Auth-Mode": "",
			},
		},
		{
			name:          "Authenticated caller",
			authenticated: true,
			write:         func(a *APIResponse) { a.JSON(struct{}{}) },
			wantStatus:    http.StatusOK,
			wantHeaders:   map[string]string{"X-Auth-Mode": "authenticated", "X-Cache-Status": ""},
		},
		{
			name:        "Plain document",
			write:       func(a *APIResponse) { a.SetCacheStatus(cacheHit).Document(plainDoc) },
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{"X-Lyrics-Format": "plain", "X-Cache-Status": "HIT"},
		},
		{
			name:        "Timed document",
			write:       func(a *APIResponse) { a.Document(DocumentResponse{Synchronized: true, Format: "lrc"}) },
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{"X-Lyrics-Format": "lrc"},
		},
		{
			name:        "Explicit format wins",
			write:       func(a *APIResponse) { a.SetFormat("custom").Document(DocumentResponse{Synchronized: true, Format: "lrc"}) },
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{"X-Lyrics-Format": "custom"},
		},
		{
			name:        "Negative hit",
			write:       func(a *APIResponse) { a.SetCacheStatus(cacheNegativeHit).Message(http.StatusNotFound, "no lyrics") },
			wantStatus:  http.StatusNotFound,
			wantHeaders: map[string]string{"X-Cache-Status": "NEGATIVE_HIT"},
		},
		{
			name:          "Upstream failure",
			authenticated: true,
			write: func(a *APIResponse) {
				a.SetProvider("lrclib").Error(http.StatusBadGateway, map[string]string{"error": "upstream"})
			},
			wantStatus:  http.StatusBadGateway,
			wantHeaders: map[string]string{"X-Provider": "lrclib", "X-Auth-Mode": "authenticated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/getLyrics", nil)
			if tt.authenticated {
				r = authenticatedRequest(t, r)
			}

			tt.write(Respond(w, r))

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}
			for name, want := range tt.wantHeaders {
				if got := w.Header().Get(name); got != want {
					t.Errorf("%s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestAPIResponse_MessageBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/sessions/car/line?t=0", nil)

	Respond(w, r).Message(http.StatusConflict, "lyrics are not synchronized")

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if body["error"] != "lyrics are not synchronized" {
		t.Errorf("error = %q", body["error"])
	}
}
