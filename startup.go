package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/lyrics/lrc"
	"lyrics-sync-go/middleware"
	"lyrics-sync-go/services/providers"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// publicPaths stay reachable without an API key when one is required
var publicPaths = []string{"/", "/health"}

func setupLogging() {
	if strings.EqualFold(conf.Server.LogFormat, "text") {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.SetOutput(os.Stdout)
	log.SetLevel(conf.LogLevel())
}

// newLyricsRegistry builds the detector. Formats are probed in the order
// listed here.
func newLyricsRegistry() *lyrics.Registry {
	return lyrics.NewRegistry(
		[]lyrics.Format{lrc.New()},
		lyrics.WithLeadIn(conf.Lyrics.LeadInMs),
		lyrics.WithLineBreak(conf.LineBreak()),
	)
}

// resolveSources looks up the configured providers in fetch order
func resolveSources() ([]providers.Provider, error) {
	sources, err := providers.GetRegistry().Resolve(conf.Configuration.Providers)
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDERS setting (available: %v): %w", providers.List(), err)
	}
	for _, p := range sources {
		log.Infof("%s Using lyrics provider %s", logcolors.LogConfig, logcolors.Provider(p.Name()))
	}
	return sources, nil
}

// buildHandler wraps the router in the middleware chain, outermost first:
// logging, CORS, API key, rate limiting
func buildHandler(router http.Handler, limiter *middleware.IPRateLimiter) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   conf.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key"},
		ExposedHeaders:   []string{"X-Cache-Status", "X-Provider", "X-Lyrics-Format", "X-Auth-Mode", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
	})

	rateLimited := middleware.RateLimitMiddleware(limiter, func(r *http.Request) bool {
		return middleware.IsAuthenticated(r.Context())
	})(router)
	authenticated := middleware.APIKeyMiddleware(conf.Configuration.APIKey, conf.Configuration.APIKeyRequired, publicPaths)(rateLimited)

	return middleware.LoggingMiddleware(c.Handler(authenticated))
}
