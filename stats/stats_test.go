package stats

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	tests := []struct {
		path    string
		counter func(s *Stats) int64
	}{
		{path: "/getLyrics", counter: func(s *Stats) int64 { return s.LyricsRequests.Load() }},
		{path: "/detect", counter: func(s *Stats) int64 { return s.EngineRequests.Load() }},
		{path: "/parse", counter: func(s *Stats) int64 { return s.EngineRequests.Load() }},
		{path: "/sessions/abc/line", counter: func(s *Stats) int64 { return s.SessionRequests.Load() }},
		{path: "/cache", counter: func(s *Stats) int64 { return s.CacheRequests.Load() }},
		{path: "/cache/backups", counter: func(s *Stats) int64 { return s.CacheRequests.Load() }},
		{path: "/stats", counter: func(s *Stats) int64 { return s.StatsRequests.Load() }},
		{path: "/health", counter: func(s *Stats) int64 { return s.HealthRequests.Load() }},
		{path: "/cachex", counter: func(s *Stats) int64 { return s.OtherRequests.Load() }},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s := New()
			s.RecordRequest(tt.path)

			if tt.counter(s) != 1 {
				t.Errorf("Expected %s to be counted in its family", tt.path)
			}
			if s.TotalRequests.Load() != 1 {
				t.Errorf("Expected total 1, got %d", s.TotalRequests.Load())
			}
		})
	}
}

func TestRecordStatusCode(t *testing.T) {
	s := New()
	for _, code := range []int{200, 204, 302, 404, 429, 500, 503} {
		s.RecordStatusCode(code)
	}

	if s.Status2xx.Load() != 2 || s.Status4xx.Load() != 2 || s.Status5xx.Load() != 2 {
		t.Errorf("Unexpected status counts 2xx=%d 4xx=%d 5xx=%d",
			s.Status2xx.Load(), s.Status4xx.Load(), s.Status5xx.Load())
	}
}

func TestRecordDetectionAndRateLimit(t *testing.T) {
	s := New()
	s.RecordDetection(true)
	s.RecordDetection(true)
	s.RecordDetection(false)
	s.RecordRateLimit(true)
	s.RecordRateLimit(false)

	if s.DetectionsSynced.Load() != 2 || s.DetectionsPlain.Load() != 1 {
		t.Errorf("Unexpected detection counts %d/%d", s.DetectionsSynced.Load(), s.DetectionsPlain.Load())
	}
	if s.RateLimitAllowed.Load() != 1 || s.RateLimitExceeded.Load() != 1 {
		t.Errorf("Unexpected rate limit counts %d/%d", s.RateLimitAllowed.Load(), s.RateLimitExceeded.Load())
	}
}

func TestResponseTimes(t *testing.T) {
	s := New()

	if s.MinResponseTime() != 0 || s.AvgResponseTime() != 0 {
		t.Error("Expected zero response times before any response")
	}

	s.RecordResponseTime(10 * time.Millisecond)
	s.RecordResponseTime(30 * time.Millisecond)

	if s.MinResponseTime() != 10*time.Millisecond {
		t.Errorf("Expected min 10ms, got %v", s.MinResponseTime())
	}
	if s.MaxResponseTime() != 30*time.Millisecond {
		t.Errorf("Expected max 30ms, got %v", s.MaxResponseTime())
	}
	if s.AvgResponseTime() != 20*time.Millisecond {
		t.Errorf("Expected avg 20ms, got %v", s.AvgResponseTime())
	}
}

func TestCacheHitRate(t *testing.T) {
	s := New()
	if s.CacheHitRate() != 0 {
		t.Error("Expected 0 hit rate with no lookups")
	}

	s.CacheHits.Add(3)
	s.CacheMisses.Add(1)
	if s.CacheHitRate() != 75 {
		t.Errorf("Expected 75%%, got %v", s.CacheHitRate())
	}
}

func TestConcurrentRecording(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.RecordRequest("/getLyrics")
				s.RecordResponseTime(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if s.TotalRequests.Load() != 1000 {
		t.Errorf("Expected 1000 requests, got %d", s.TotalRequests.Load())
	}
}

func TestSnapshotSections(t *testing.T) {
	snap := New().Snapshot()

	for _, section := range []string{"server", "requests", "detections", "sessions", "cache", "upstream", "rate_limiting", "responses", "response_times"} {
		if _, ok := snap[section]; !ok {
			t.Errorf("Expected snapshot section %q", section)
		}
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stats.db")

	original := New()
	original.TotalRequests.Add(42)
	original.DetectionsSynced.Add(7)
	original.RecordResponseTime(5 * time.Millisecond)

	store, err := NewStore(dbPath, original)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	store.Close()

	restored := New()
	store, err = NewStore(dbPath, restored)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if restored.TotalRequests.Load() != 42 {
		t.Errorf("Expected 42 total requests, got %d", restored.TotalRequests.Load())
	}
	if restored.DetectionsSynced.Load() != 7 {
		t.Errorf("Expected 7 synced detections, got %d", restored.DetectionsSynced.Load())
	}
	if restored.MinResponseTime() != 5*time.Millisecond {
		t.Errorf("Expected min 5ms, got %v", restored.MinResponseTime())
	}
	if !restored.StartTime.Equal(original.StartTime) {
		t.Errorf("Expected first start time to be preserved")
	}
}

func TestStoreLoadEmpty(t *testing.T) {
	s := New()
	store, err := NewStore(filepath.Join(t.TempDir(), "stats.db"), s)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		t.Fatalf("Load on empty store failed: %v", err)
	}
	if s.MinResponseTime() != 0 {
		t.Error("Expected min response time to stay unset")
	}
}

func TestStoreRunSavesOnShutdown(t *testing.T) {
	s := New()
	store, err := NewStore(filepath.Join(t.TempDir(), "stats.db"), s)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx, time.Hour) }()

	s.LineLookups.Add(3)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	reloaded := New()
	store.stats = reloaded
	store.Load()
	if reloaded.LineLookups.Load() != 3 {
		t.Errorf("Expected 3 line lookups to be saved on shutdown, got %d", reloaded.LineLookups.Load())
	}
}
