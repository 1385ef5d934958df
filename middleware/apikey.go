package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const authenticatedKey contextKey = "apiKeyAuthenticated"

// IsAuthenticated reports whether the request carried the configured API key
func IsAuthenticated(ctx context.Context) bool {
	ok, _ := ctx.Value(authenticatedKey).(bool)
	return ok
}

// APIKeyMiddleware checks the X-API-Key header.
// A valid key marks the request authenticated whether or not keys are required.
// When required, requests without a valid key are rejected unless the path is public.
// Public paths match exactly, or by prefix when they end in "*".
func APIKeyMiddleware(apiKey string, required bool, publicPaths []string) func(http.Handler) http.Handler {
	if required && apiKey == "" {
		log.Warnf("%s API key required but not configured, allowing all requests", logcolors.LogAPIKey)
		required = false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-API-Key")
			valid := apiKey != "" && provided != "" &&
				subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) == 1

			if valid {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authenticatedKey, true)))
				return
			}

			if !required || isPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			if provided == "" {
				log.Warnf("%s Missing API key from %s for %s", logcolors.LogAPIKey, r.RemoteAddr, r.URL.Path)
				w.Write([]byte(`{"error":"API key required","message":"Provide a valid API key via X-API-Key header"}`))
				return
			}
			log.Warnf("%s Invalid API key from %s for %s", logcolors.LogAPIKey, r.RemoteAddr, r.URL.Path)
			w.Write([]byte(`{"error":"Invalid API key","message":"The provided API key is not valid"}`))
		})
	}
}

func isPublicPath(path string, publicPaths []string) bool {
	for _, p := range publicPaths {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		} else if p == path {
			return true
		}
	}
	return false
}
