package stats

import (
	"math"
	"strings"
	"sync/atomic"
	"time"
)

const noMin = math.MaxInt64

// Stats holds server statistics as atomic counters
type Stats struct {
	StartTime time.Time

	// Requests by route family
	TotalRequests   atomic.Int64
	LyricsRequests  atomic.Int64
	EngineRequests  atomic.Int64 // /detect and /parse
	SessionRequests atomic.Int64
	CacheRequests   atomic.Int64
	StatsRequests   atomic.Int64
	HealthRequests  atomic.Int64
	OtherRequests   atomic.Int64

	// Format detection
	DetectionsSynced atomic.Int64
	DetectionsPlain  atomic.Int64

	// Sessions
	SessionsCreated atomic.Int64
	SessionsReaped  atomic.Int64
	LineLookups     atomic.Int64

	// Raw payload cache and upstream
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
	NegativeCacheHits atomic.Int64
	UpstreamFetches   atomic.Int64
	SharedFetches     atomic.Int64 // callers that joined an in-flight fetch
	CircuitTrips      atomic.Int64

	// Rate limiting
	RateLimitAllowed  atomic.Int64
	RateLimitExceeded atomic.Int64

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response times in microseconds
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64
}

var global = New()

// New returns an empty Stats started now
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(noMin)
	return s
}

// Get returns the process-wide stats instance
func Get() *Stats {
	return global
}

// RecordRequest counts a request by the route family of its path
func (s *Stats) RecordRequest(path string) {
	s.TotalRequests.Add(1)
	switch {
	case path == "/getLyrics":
		s.LyricsRequests.Add(1)
	case path == "/detect" || path == "/parse":
		s.EngineRequests.Add(1)
	case strings.HasPrefix(path, "/sessions/"):
		s.SessionRequests.Add(1)
	case path == "/cache" || strings.HasPrefix(path, "/cache/"):
		s.CacheRequests.Add(1)
	case path == "/stats":
		s.StatsRequests.Add(1)
	case path == "/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordDetection counts the outcome of a format probe
func (s *Stats) RecordDetection(synchronized bool) {
	if synchronized {
		s.DetectionsSynced.Add(1)
	} else {
		s.DetectionsPlain.Add(1)
	}
}

// RecordRateLimit counts an allowed or rejected request
func (s *Stats) RecordRateLimit(allowed bool) {
	if allowed {
		s.RateLimitAllowed.Add(1)
	} else {
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
}

// Uptime returns the time since StartTime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load()
	total := hits + s.CacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the mean response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the fastest response time, or 0 before any response
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == noMin {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the slowest response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// counters names every cumulative counter, for persistence
func (s *Stats) counters() map[string]*atomic.Int64 {
	return map[string]*atomic.Int64{
		"total_requests":      &s.TotalRequests,
		"lyrics_requests":     &s.LyricsRequests,
		"engine_requests":     &s.EngineRequests,
		"session_requests":    &s.SessionRequests,
		"cache_requests":      &s.CacheRequests,
		"stats_requests":      &s.StatsRequests,
		"health_requests":     &s.HealthRequests,
		"other_requests":      &s.OtherRequests,
		"detections_synced":   &s.DetectionsSynced,
		"detections_plain":    &s.DetectionsPlain,
		"sessions_created":    &s.SessionsCreated,
		"sessions_reaped":     &s.SessionsReaped,
		"line_lookups":        &s.LineLookups,
		"cache_hits":          &s.CacheHits,
		"cache_misses":        &s.CacheMisses,
		"negative_cache_hits": &s.NegativeCacheHits,
		"upstream_fetches":    &s.UpstreamFetches,
		"shared_fetches":      &s.SharedFetches,
		"circuit_trips":       &s.CircuitTrips,
		"rate_limit_allowed":  &s.RateLimitAllowed,
		"rate_limit_exceeded": &s.RateLimitExceeded,
		"status_2xx":          &s.Status2xx,
		"status_4xx":          &s.Status4xx,
		"status_5xx":          &s.Status5xx,
		"total_response_time": &s.totalResponseTime,
		"response_count":      &s.responseCount,
	}
}

// Snapshot returns a point-in-time view of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":    s.TotalRequests.Load(),
			"lyrics":   s.LyricsRequests.Load(),
			"engine":   s.EngineRequests.Load(),
			"sessions": s.SessionRequests.Load(),
			"cache":    s.CacheRequests.Load(),
			"stats":    s.StatsRequests.Load(),
			"health":   s.HealthRequests.Load(),
			"other":    s.OtherRequests.Load(),
		},
		"detections": map[string]interface{}{
			"synchronized": s.DetectionsSynced.Load(),
			"plain":        s.DetectionsPlain.Load(),
		},
		"sessions": map[string]interface{}{
			"created":      s.SessionsCreated.Load(),
			"reaped":       s.SessionsReaped.Load(),
			"line_lookups": s.LineLookups.Load(),
		},
		"cache": map[string]interface{}{
			"hits":          s.CacheHits.Load(),
			"misses":        s.CacheMisses.Load(),
			"negative_hits": s.NegativeCacheHits.Load(),
			"hit_rate":      s.CacheHitRate(),
		},
		"upstream": map[string]interface{}{
			"fetches":       s.UpstreamFetches.Load(),
			"shared":        s.SharedFetches.Load(),
			"circuit_trips": s.CircuitTrips.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"allowed":  s.RateLimitAllowed.Load(),
			"exceeded": s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg": s.AvgResponseTime().String(),
			"min": s.MinResponseTime().String(),
			"max": s.MaxResponseTime().String(),
		},
	}
}
