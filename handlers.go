package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"lyrics-sync-go/cache"
	"lyrics-sync-go/circuitbreaker"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/session"
	"lyrics-sync-go/stats"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// maxPayloadBytes caps request bodies carrying raw lyrics
const maxPayloadBytes = 1 << 20

const maxOffsetBodyBytes = 1 << 10

// firstParam returns the first non-empty query value among names
func firstParam(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, name := range names {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// trackFromQuery reads the track signature from s/a/al/d (or their long
// forms). Duration is given in seconds.
func trackFromQuery(r *http.Request) (lyrics.Track, error) {
	track := lyrics.Track{
		Name:   firstParam(r, "s", "song", "songName"),
		Artist: firstParam(r, "a", "artist", "artistName"),
		Album:  firstParam(r, "al", "album", "albumName"),
	}
	if d := firstParam(r, "d", "duration"); d != "" {
		secs, err := strconv.ParseFloat(d, 64)
		if err != nil || secs < 0 {
			return track, fmt.Errorf("invalid duration: %q", d)
		}
		track.DurationMs = int(secs * 1000)
	}
	return track, nil
}

func isAuthorized(r *http.Request) bool {
	token := conf.Configuration.CacheAccessToken
	return token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(token)) == 1
}

func readPayload(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// respondFetchError maps upstream failures to status codes
func respondFetchError(w http.ResponseWriter, r *http.Request, status string, err error) {
	resp := Respond(w, r).SetCacheStatus(status)
	switch {
	case providers.IsNotFound(err):
		resp.Message(http.StatusNotFound, "Lyrics not available for this track")
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		resp.Message(http.StatusServiceUnavailable, "Lyrics source temporarily unavailable, try again later")
	case errors.Is(err, errNoProviders):
		resp.Message(http.StatusServiceUnavailable, err.Error())
	default:
		log.Errorf("%s Error fetching lyrics: %v", logcolors.LogLyrics, err)
		resp.Message(http.StatusBadGateway, "Failed to fetch lyrics")
	}
}

// respondSessionError maps session errors to status codes
func respondSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNoLyrics):
		Respond(w, r).Message(http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrNotSynchronized):
		Respond(w, r).Message(http.StatusConflict, err.Error())
	default:
		Respond(w, r).Message(http.StatusInternalServerError, err.Error())
	}
}

// Lyrics and engine endpoints

func getLyrics(w http.ResponseWriter, r *http.Request) {
	track, err := trackFromQuery(r)
	if err != nil {
		Respond(w, r).Message(http.StatusBadRequest, err.Error())
		return
	}
	if track.Name == "" && track.Artist == "" {
		Respond(w, r).Message(http.StatusUnprocessableEntity, "Song name or artist name not provided")
		return
	}

	payload, status, err := fetchRawLyrics(r.Context(), track)
	if err != nil {
		respondFetchError(w, r, status, err)
		return
	}

	doc := lyricsRegistry.Parse(track, payload.Raw)
	stats.Get().RecordDetection(doc.IsSynchronized())

	resp := newDocumentResponse(doc)
	resp.Provider = payload.Provider
	Respond(w, r).SetCacheStatus(status).SetProvider(payload.Provider).Document(resp)
}

func detectFormat(w http.ResponseWriter, r *http.Request) {
	raw, err := readPayload(w, r)
	if err != nil {
		Respond(w, r).Message(http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	format, ok := lyricsRegistry.Detect(raw)
	stats.Get().RecordDetection(ok)

	resp := DetectResponse{Synchronized: ok}
	name := plainFormat
	if ok {
		resp.Format = format.Name()
		name = resp.Format
	}
	log.Debugf("%s Payload of %d bytes detected as %s", logcolors.LogDetect, len(raw), name)
	Respond(w, r).SetFormat(name).JSON(resp)
}

func parseLyrics(w http.ResponseWriter, r *http.Request) {
	raw, err := readPayload(w, r)
	if err != nil {
		Respond(w, r).Message(http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	track, err := trackFromQuery(r)
	if err != nil {
		Respond(w, r).Message(http.StatusBadRequest, err.Error())
		return
	}

	doc := lyricsRegistry.Parse(track, raw)
	stats.Get().RecordDetection(doc.IsSynchronized())
	Respond(w, r).Document(newDocumentResponse(doc))
}

// Session endpoints

func putSessionLyrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req SessionLyricsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&req); err != nil {
		Respond(w, r).Message(http.StatusBadRequest, "Invalid request body")
		return
	}

	raw := req.Lyrics
	status, provider := "", ""
	if raw == "" {
		if req.Track.Name == "" && req.Track.Artist == "" {
			Respond(w, r).Message(http.StatusUnprocessableEntity, "Provide lyrics or a track to fetch them for")
			return
		}
		payload, cacheStatus, err := fetchRawLyrics(r.Context(), req.Track)
		if err != nil {
			respondFetchError(w, r, cacheStatus, err)
			return
		}
		raw, status, provider = payload.Raw, cacheStatus, payload.Provider
	}

	sess, created := sessions.GetOrCreate(id)
	doc := sess.Load(req.Track, raw)
	stats.Get().RecordDetection(doc.IsSynchronized())

	log.Infof("%s Loaded lyrics into session %s (created: %v, synchronized: %v)", logcolors.LogSession, id, created, doc.IsSynchronized())

	document := newDocumentResponse(doc)
	document.Provider = provider
	Respond(w, r).SetCacheStatus(status).SetProvider(provider).JSON(map[string]interface{}{
		"created": created,
		"session": sess.Info(),
		"lyrics":  document,
	})
}

// lookupSession writes a 404 and returns false when the session is unknown
func lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := mux.Vars(r)["id"]
	sess, ok := sessions.Get(id)
	if !ok {
		Respond(w, r).Message(http.StatusNotFound, "Session not found")
		return nil, false
	}
	return sess, true
}

func getSessionLine(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(w, r)
	if !ok {
		return
	}

	t, err := strconv.Atoi(r.URL.Query().Get("t"))
	if err != nil {
		Respond(w, r).Message(http.StatusBadRequest, "Query parameter t (playback position in ms) is required")
		return
	}

	display, err := sess.Position(t)
	if err != nil {
		respondSessionError(w, r, err)
		return
	}
	Respond(w, r).JSON(display)
}

func getSessionText(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(w, r)
	if !ok {
		return
	}

	text, err := sess.Text()
	if err != nil {
		respondSessionError(w, r, err)
		return
	}
	Respond(w, r).JSON(map[string]interface{}{"text": text})
}

func putSessionOffset(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(w, r)
	if !ok {
		return
	}

	var req OffsetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOffsetBodyBytes)).Decode(&req); err != nil || req.OffsetMs == nil {
		Respond(w, r).Message(http.StatusBadRequest, "Body must be {\"offsetMs\": <int>}")
		return
	}

	if err := sess.SetOffset(*req.OffsetMs); err != nil {
		respondSessionError(w, r, err)
		return
	}
	Respond(w, r).JSON(sess.Info())
}

func getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(w, r)
	if !ok {
		return
	}
	Respond(w, r).JSON(sess.Info())
}

func deleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !sessions.Delete(id) {
		Respond(w, r).Message(http.StatusNotFound, "Session not found")
		return
	}
	Respond(w, r).JSON(map[string]interface{}{"message": "Session deleted", "id": id})
}

// Cache admin endpoints

func getCacheDump(w http.ResponseWriter, r *http.Request) {
	if !isAuthorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var dump CacheDump
	if r.URL.Query().Get("keys") != "false" {
		dump = CacheDump{}
		persistentCache.Range(func(key string, entry cache.Entry) bool {
			dump[key] = entry
			return true
		})
	}

	numKeys, sizeInKB := persistentCache.Stats()
	s := stats.Get()

	Respond(w, r).JSON(CacheDumpResponse{
		NumberOfKeys: numKeys,
		SizeInKB:     sizeInKB,
		SizeInMB:     float64(sizeInKB) / 1024,
		Performance: CachePerformance{
			Hits:         s.CacheHits.Load(),
			Misses:       s.CacheMisses.Load(),
			NegativeHits: s.NegativeCacheHits.Load(),
			HitRate:      s.CacheHitRate(),
		},
		Cache: dump,
	})
}

func backupCache(w http.ResponseWriter, r *http.Request) {
	if !isAuthorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	backupPath, err := persistentCache.Backup()
	if err != nil {
		log.Errorf("%s Failed to create backup: %v", logcolors.LogCacheBackup, err)
		Respond(w, r).Message(http.StatusInternalServerError, fmt.Sprintf("Failed to create backup: %v", err))
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Cache backed up successfully",
		"backup_path": backupPath,
	})
}

func clearCache(w http.ResponseWriter, r *http.Request) {
	if !isAuthorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	backupPath, err := persistentCache.BackupAndClear()
	if err != nil {
		log.Errorf("%s Failed to clear cache: %v", logcolors.LogCacheClear, err)
		Respond(w, r).Message(http.StatusInternalServerError, fmt.Sprintf("Failed to clear cache: %v", err))
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Cache cleared successfully",
		"backup_path": backupPath,
	})
}

func listBackups(w http.ResponseWriter, r *http.Request) {
	if !isAuthorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	backups, err := persistentCache.ListBackups()
	if err != nil {
		Respond(w, r).Message(http.StatusInternalServerError, fmt.Sprintf("Failed to list backups: %v", err))
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"count":   len(backups),
		"backups": backups,
	})
}

func deleteBackup(w http.ResponseWriter, r *http.Request) {
	if !isAuthorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	name := mux.Vars(r)["name"]
	if err := persistentCache.DeleteBackup(name); err != nil {
		Respond(w, r).Message(http.StatusBadRequest, err.Error())
		return
	}
	Respond(w, r).JSON(map[string]interface{}{"message": "Backup deleted", "backup": name})
}

// Ops endpoints

// breakerSnapshots lists the breakers of every configured source that has one
func breakerSnapshots() []circuitbreaker.Snapshot {
	var snapshots []circuitbreaker.Snapshot
	for _, p := range lyricsSources {
		if g, ok := p.(providers.Guarded); ok {
			snapshots = append(snapshots, g.Breaker().Snapshot())
		}
	}
	return snapshots
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":   "ok",
		"formats":  lyricsRegistry.Formats(),
		"sessions": sessions.Len(),
	}

	names := make([]string, len(lyricsSources))
	for i, p := range lyricsSources {
		names[i] = p.Name()
	}
	health["providers"] = names

	breakers := breakerSnapshots()
	for _, b := range breakers {
		if b.State == circuitbreaker.StateOpen.String() {
			health["status"] = "degraded"
		}
	}
	if len(lyricsSources) == 0 {
		health["status"] = "degraded"
		health["error"] = errNoProviders.Error()
	}

	if isAuthorized(r) {
		health["circuit_breakers"] = breakers
	}

	Respond(w, r).JSON(health)
}

func getStats(w http.ResponseWriter, r *http.Request) {
	if !isAuthorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot := stats.Get().Snapshot()

	numKeys, sizeInKB := persistentCache.Stats()
	snapshot["cache_storage"] = map[string]interface{}{
		"keys":    numKeys,
		"size_kb": sizeInKB,
		"size_mb": float64(sizeInKB) / 1024,
	}
	snapshot["active_sessions"] = sessions.Len()
	snapshot["circuit_breakers"] = breakerSnapshots()

	Respond(w, r).JSON(snapshot)
}

func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if !isAuthorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"circuit_breakers": breakerSnapshots(),
		"config": map[string]interface{}{
			"threshold":    conf.Configuration.CircuitBreakerThreshold,
			"cooldown_sec": conf.Configuration.CircuitBreakerCooldownSecs,
		},
	})
}

// resetCircuitBreaker closes every breaker, or only the one named by ?provider=
func resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if !isAuthorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	target := r.URL.Query().Get("provider")
	var reset []string
	for _, p := range lyricsSources {
		g, ok := p.(providers.Guarded)
		if !ok || (target != "" && target != p.Name()) {
			continue
		}
		g.Breaker().Reset()
		reset = append(reset, p.Name())
	}

	if target != "" && len(reset) == 0 {
		Respond(w, r).Message(http.StatusNotFound, fmt.Sprintf("No circuit breaker for provider %q", target))
		return
	}

	log.Infof("%s Reset circuit breakers: %v", logcolors.LogServer, reset)
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset to CLOSED state",
		"reset":   reset,
	})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"help": "Use /getLyrics?s=<song>&a=<artist>[&al=<album>][&d=<seconds>] to fetch and parse lyrics. " +
			"POST raw lyrics to /detect or /parse. Drive a playback session with PUT /sessions/{id}/lyrics " +
			"and GET /sessions/{id}/line?t=<ms>, or stream positions over the /sessions/{id}/follow websocket.",
		"formats": lyricsRegistry.Formats(),
	})
}
