// Package lrclib fetches lyrics from an LRCLib server (https://lrclib.net).
// Synced lyrics are preferred; plain lyrics are returned when no synced
// version exists.
package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lyrics-sync-go/circuitbreaker"
	"lyrics-sync-go/config"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/stats"

	log "github.com/sirupsen/logrus"
)

const (
	// ProviderName is the identifier for the LRCLib provider
	ProviderName = "lrclib"

	// CachePrefix namespaces LRCLib entries in the cache
	CachePrefix = "lrclib"
)

// Options configures a Provider
type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RetryDelay time.Duration
	Breaker    *circuitbreaker.CircuitBreaker
}

// Provider implements providers.Provider against the LRCLib API
type Provider struct {
	httpClient *http.Client
	apiURL     string
	userAgent  string
	retryDelay time.Duration
	breaker    *circuitbreaker.CircuitBreaker
}

type apiResponse struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// New creates a provider. A nil Breaker gets a default one.
func New(opts Options) *Provider {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "lyrics-sync-go/1.0"
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.New(circuitbreaker.Config{Name: ProviderName})
	}

	return &Provider{
		httpClient: &http.Client{Timeout: opts.Timeout},
		apiURL:     strings.TrimRight(opts.BaseURL, "/") + "/api/get",
		userAgent:  opts.UserAgent,
		retryDelay: opts.RetryDelay,
		breaker:    opts.Breaker,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return ProviderName
}

// CacheKeyPrefix returns the cache key prefix for this provider
func (p *Provider) CacheKeyPrefix() string {
	return CachePrefix
}

// Breaker exposes the circuit breaker guarding the API
func (p *Provider) Breaker() *circuitbreaker.CircuitBreaker {
	return p.breaker
}

// FetchLyrics looks the track up by exact signature.
// Not-found answers do not count against the circuit breaker.
func (p *Provider) FetchLyrics(ctx context.Context, song, artist, album string, durationMs int) (*providers.LyricsResult, error) {
	if song == "" && artist == "" {
		return nil, providers.NewProviderError(ProviderName, "song name and artist name cannot both be empty", nil)
	}

	log.Infof("%s %s Searching: %s - %s", logcolors.LogSearch, logcolors.Provider("LRCLib"), song, artist)

	var result *providers.LyricsResult
	err := p.breaker.Execute(func() error {
		var err error
		result, err = p.fetchWithRetry(ctx, song, artist, album, durationMs)
		return err
	}, func(err error) bool {
		return !providers.IsNotFound(err)
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		log.Warnf("%s %s Circuit open, retry in %v", logcolors.LogWarning, logcolors.Provider("LRCLib"), p.breaker.TimeUntilRetry())
		return nil, providers.NewProviderError(ProviderName, "upstream unavailable", err)
	}
	if err != nil {
		return nil, err
	}

	log.Infof("%s %s Found %s lyrics for %s - %s", logcolors.LogSuccess, logcolors.Provider("LRCLib"), kind(result.Synced), song, artist)
	return result, nil
}

// fetchWithRetry retries once on network-level errors only; API errors
// would fail the same way again.
func (p *Provider) fetchWithRetry(ctx context.Context, song, artist, album string, durationMs int) (*providers.LyricsResult, error) {
	result, err := p.doFetch(ctx, song, artist, album, durationMs)
	if err == nil || !isTransient(err) {
		return result, err
	}

	log.Warnf("%s %s Transient error, retrying in %v: %v", logcolors.LogFallback, logcolors.Provider("LRCLib"), p.retryDelay, err)
	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(p.retryDelay):
	}
	return p.doFetch(ctx, song, artist, album, durationMs)
}

func isTransient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (p *Provider) doFetch(ctx context.Context, song, artist, album string, durationMs int) (*providers.LyricsResult, error) {
	params := url.Values{}
	params.Set("track_name", song)
	params.Set("artist_name", artist)
	if album != "" {
		params.Set("album_name", album)
	}
	if durationMs > 0 {
		params.Set("duration", strconv.Itoa(int(math.Round(float64(durationMs)/1000))))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to create request", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	stats.Get().UpstreamFetches.Add(1)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lrclib request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, providers.NewProviderError(ProviderName, fmt.Sprintf("no track found for: %s - %s", song, artist), providers.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providers.NewProviderError(ProviderName, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to decode response", err)
	}

	result := &providers.LyricsResult{
		Provider:        ProviderName,
		Instrumental:    body.Instrumental,
		TrackDurationMs: int(math.Round(body.Duration * 1000)),
		FetchedAt:       time.Now(),
	}
	switch {
	case strings.TrimSpace(body.SyncedLyrics) != "":
		result.RawLyrics = body.SyncedLyrics
		result.Synced = true
	case strings.TrimSpace(body.PlainLyrics) != "":
		result.RawLyrics = body.PlainLyrics
	default:
		reason := "track has no lyrics"
		if body.Instrumental {
			reason = "track is instrumental"
		}
		return nil, providers.NewProviderError(ProviderName, reason, providers.ErrNotFound)
	}
	return result, nil
}

func kind(synced bool) string {
	if synced {
		return "synced"
	}
	return "plain"
}

func init() {
	conf := config.Get()
	providers.Register(New(Options{
		BaseURL:   conf.Configuration.LRCLibBaseURL,
		UserAgent: conf.Configuration.UserAgent,
		Timeout:   time.Duration(conf.Configuration.LRCLibTimeoutSecs) * time.Second,
		Breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:      ProviderName,
			Threshold: conf.Configuration.CircuitBreakerThreshold,
			Cooldown:  conf.CircuitBreakerCooldown(),
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				if to == circuitbreaker.StateOpen {
					stats.Get().CircuitTrips.Add(1)
				}
			},
		}),
	}))
}
