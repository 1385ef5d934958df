package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lyrics-sync-go/lyrics"

	"github.com/gorilla/websocket"
)

func dialFollow(t *testing.T, server *httptest.Server, id string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + id + "/follow"
	return websocket.DefaultDialer.Dial(url, header)
}

func readUpdate(t *testing.T, conn *websocket.Conn) followUpdate {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update followUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("Failed to read update: %v", err)
	}
	return update
}

func TestFollowSession(t *testing.T) {
	setupTestEnvironment(t)
	sess, _ := sessions.GetOrCreate("car")
	sess.Load(lyrics.Track{Name: "Song"}, "[00:01.00]Hello\n[00:03.00]World")

	server := httptest.NewServer(newTestHandler())
	defer server.Close()

	conn, _, err := dialFollow(t, server, "car", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(followPosition{TimeMs: 0}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if update := readUpdate(t, conn); update.Current != "Hello" || update.Next != "World" {
		t.Errorf("First update = %+v", update)
	}

	// Same display, so nothing is sent for this position
	conn.WriteJSON(followPosition{TimeMs: 300})
	conn.WriteJSON(followPosition{TimeMs: 2600})
	if update := readUpdate(t, conn); update.Current != "World" || update.Previous != "Hello" || update.NextStartMs != -1 {
		t.Errorf("Second update = %+v", update)
	}
}

func TestFollowSession_PlainLyrics(t *testing.T) {
	setupTestEnvironment(t)
	sess, _ := sessions.GetOrCreate("radio")
	sess.Load(lyrics.Track{}, "no timing here")

	server := httptest.NewServer(newTestHandler())
	defer server.Close()

	conn, _, err := dialFollow(t, server, "radio", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(followPosition{TimeMs: 1000})
	if update := readUpdate(t, conn); update.Error != "lyrics are not synchronized" {
		t.Errorf("Update = %+v, want a not-synchronized error", update)
	}
}

func TestFollowSession_Rejections(t *testing.T) {
	setupTestEnvironment(t)
	sessions.GetOrCreate("car")

	server := httptest.NewServer(newTestHandler())
	defer server.Close()

	_, resp, err := dialFollow(t, server, "missing", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 handshake failure for an unknown session, got %v", err)
	}

	_, resp, err = dialFollow(t, server, "car", http.Header{"Origin": []string{"https://evil.example"}})
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 handshake failure for a foreign origin, got %v", err)
	}
}

func TestCheckOrigin(t *testing.T) {
	setupTestEnvironment(t)

	tests := []struct {
		origin   string
		allowed  []string
		expected bool
	}{
		{origin: "", allowed: []string{"http://localhost:3000"}, expected: true},
		{origin: "http://localhost:3000", allowed: []string{"http://localhost:3000"}, expected: true},
		{origin: "https://other.example", allowed: []string{"http://localhost:3000"}, expected: false},
		{origin: "https://other.example", allowed: []string{"*"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			conf.Server.AllowedOrigins = tt.allowed
			r := httptest.NewRequest(http.MethodGet, "/sessions/a/follow", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := checkOrigin(r); got != tt.expected {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.expected)
			}
		})
	}
}
