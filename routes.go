package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	// Lyrics lookup and the stateless engine endpoints
	router.HandleFunc("/getLyrics", getLyrics).Methods(http.MethodGet)
	router.HandleFunc("/detect", detectFormat).Methods(http.MethodPost)
	router.HandleFunc("/parse", parseLyrics).Methods(http.MethodPost)

	// Playback sessions
	router.HandleFunc("/sessions/{id}/lyrics", putSessionLyrics).Methods(http.MethodPut)
	router.HandleFunc("/sessions/{id}/line", getSessionLine).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/text", getSessionText).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/offset", putSessionOffset).Methods(http.MethodPut)
	router.HandleFunc("/sessions/{id}/follow", followSession).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}", getSession).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}", deleteSession).Methods(http.MethodDelete)

	// Cache management endpoints
	router.HandleFunc("/cache", getCacheDump).Methods(http.MethodGet)
	router.HandleFunc("/cache/backup", backupCache).Methods(http.MethodPost)
	router.HandleFunc("/cache/backups", listBackups).Methods(http.MethodGet)
	router.HandleFunc("/cache/backups/{name}", deleteBackup).Methods(http.MethodDelete)
	router.HandleFunc("/cache/clear", clearCache).Methods(http.MethodPost)

	// Health and stats endpoints
	router.HandleFunc("/health", getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/stats", getStats).Methods(http.MethodGet)

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", getCircuitBreakerStatus).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breaker/reset", resetCircuitBreaker).Methods(http.MethodPost)

	// Help endpoint
	router.HandleFunc("/", helpHandler)
}
