package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/stats"
	"lyrics-sync-go/utils"

	log "github.com/sirupsen/logrus"
)

// Cache status values reported in X-Cache-Status
const (
	cacheHit         = "HIT"
	cacheMiss        = "MISS"
	cacheShared      = "SHARED"
	cacheNegativeHit = "NEGATIVE_HIT"
)

// upstreamFetchTimeout bounds a deduplicated fetch, which outlives the
// request that started it
const upstreamFetchTimeout = 30 * time.Second

var errNoProviders = errors.New("no lyrics providers configured")

// Lyrics cache operations

func getCachedLyrics(key string) (CachedLyrics, bool) {
	cached, ok := persistentCache.Get(key)
	if !ok {
		return CachedLyrics{}, false
	}

	var entry CachedLyrics
	if err := json.Unmarshal([]byte(cached), &entry); err != nil || entry.Raw == "" {
		log.Warnf("%s Ignoring unreadable cache entry %s", logcolors.LogCacheLyrics, key)
		return CachedLyrics{}, false
	}
	return entry, true
}

func setCachedLyrics(key string, entry CachedLyrics) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("%s Error marshaling cached lyrics: %v", logcolors.LogCacheLyrics, err)
		return
	}
	if err := persistentCache.Set(key, string(data)); err != nil {
		log.Errorf("%s Error setting cache value: %v", logcolors.LogCacheLyrics, err)
	}
}

// Negative cache operations

// getNegativeCache returns the reason stored for a known "no lyrics" key.
// Entries older than the negative TTL are deleted and reported as missing.
func getNegativeCache(key string) (string, bool) {
	negativeKey := utils.NegativeCacheKey(key)
	reason, storedAt, ok := persistentCache.Lookup(negativeKey)
	if !ok {
		return "", false
	}

	if time.Since(storedAt) > conf.NegativeCacheTTL() {
		if err := persistentCache.Delete(negativeKey); err != nil {
			log.Warnf("%s Failed to delete expired entry %s: %v", logcolors.LogCacheNegative, negativeKey, err)
		}
		return "", false
	}
	return reason, true
}

func setNegativeCache(key, reason string) {
	if err := persistentCache.Set(utils.NegativeCacheKey(key), reason); err != nil {
		log.Errorf("%s Error setting negative cache: %v", logcolors.LogCacheNegative, err)
		return
	}
	log.Infof("%s Cached 'no lyrics' for key: %s (reason: %s)", logcolors.LogCacheNegative, key, reason)
}

// shouldNegativeCache only lets permanent "no lyrics" answers through;
// timeouts and open circuits must be retried later
func shouldNegativeCache(err error) bool {
	return err != nil && providers.IsNotFound(err)
}

// trackCacheKey keys a track by its normalized signature
func trackCacheKey(track lyrics.Track) string {
	durationSecs := int(math.Round(float64(track.DurationMs) / 1000))
	return utils.LyricsCacheKey(track.Name, track.Artist, track.Album, durationSecs)
}

// fetchRawLyrics returns the raw payload for track and the cache status
// to report. Concurrent misses for the same key share one upstream fetch.
func fetchRawLyrics(ctx context.Context, track lyrics.Track) (CachedLyrics, string, error) {
	s := stats.Get()
	key := trackCacheKey(track)

	if entry, ok := getCachedLyrics(key); ok {
		s.CacheHits.Add(1)
		log.Infof("%s Found cached lyrics for %s", logcolors.LogCacheLyrics, key)
		return entry, cacheHit, nil
	}

	if reason, ok := getNegativeCache(key); ok {
		s.NegativeCacheHits.Add(1)
		log.Infof("%s Returning cached 'no lyrics' response for: %s", logcolors.LogCacheNegative, key)
		return CachedLyrics{}, cacheNegativeHit, fmt.Errorf("%s: %w", reason, providers.ErrNotFound)
	}

	s.CacheMisses.Add(1)

	v, err, shared := fetchGroup.Do(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), upstreamFetchTimeout)
		defer cancel()
		return fetchFromProviders(fetchCtx, key, track)
	})

	status := cacheMiss
	if shared {
		s.SharedFetches.Add(1)
		status = cacheShared
		log.Debugf("%s Joined in-flight fetch for %s", logcolors.LogCacheLyrics, key)
	}
	if err != nil {
		return CachedLyrics{}, status, err
	}
	return v.(CachedLyrics), status, nil
}

// fetchFromProviders tries each configured source in order. The key is only
// negative-cached when every source answered "not found".
func fetchFromProviders(ctx context.Context, key string, track lyrics.Track) (CachedLyrics, error) {
	if len(lyricsSources) == 0 {
		return CachedLyrics{}, errNoProviders
	}

	var failures []error
	for _, p := range lyricsSources {
		result, err := p.FetchLyrics(ctx, track.Name, track.Artist, track.Album, track.DurationMs)
		if err != nil {
			log.Warnf("%s %s %v", logcolors.LogFallback, logcolors.Provider(p.Name()), err)
			if !shouldNegativeCache(err) {
				failures = append(failures, err)
			}
			continue
		}

		entry := CachedLyrics{
			Raw:             result.RawLyrics,
			Provider:        result.Provider,
			Synced:          result.Synced,
			TrackDurationMs: result.TrackDurationMs,
		}
		setCachedLyrics(key, entry)
		log.Infof("%s Cached %s lyrics from %s for %s", logcolors.LogCacheLyrics, kindOf(entry.Synced), entry.Provider, key)
		return entry, nil
	}

	if len(failures) > 0 {
		return CachedLyrics{}, errors.Join(failures...)
	}
	setNegativeCache(key, "no lyrics found")
	return CachedLyrics{}, fmt.Errorf("%s: %w", track.Name, providers.ErrNotFound)
}

func kindOf(synced bool) string {
	if synced {
		return "synced"
	}
	return "plain"
}
