package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lyrics-sync-go/cache"
	"lyrics-sync-go/config"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/middleware"
	"lyrics-sync-go/services/providers"
	_ "lyrics-sync-go/services/providers/lrclib"
	"lyrics-sync-go/session"
	"lyrics-sync-go/stats"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var conf = config.Get()

var (
	persistentCache *cache.Store
	lyricsRegistry  *lyrics.Registry
	sessions        *session.Manager
	lyricsSources   []providers.Provider
	fetchGroup      singleflight.Group
)

const (
	shutdownTimeout    = 10 * time.Second
	limiterSweepEvery  = time.Minute
	limiterMaxIdleTime = 10 * time.Minute
)

func main() {
	setupLogging()

	var err error
	persistentCache, err = cache.NewStore(conf.Configuration.CacheDBPath, conf.Configuration.CacheBackupPath, conf.FeatureFlags.CacheCompression)
	if err != nil {
		log.Fatalf("%s Failed to open cache: %v", logcolors.LogCacheInit, err)
	}
	defer persistentCache.Close()

	statsStore, err := stats.NewStore(conf.Configuration.StatsDBPath, stats.Get())
	if err != nil {
		log.Fatalf("%s Failed to open stats store: %v", logcolors.LogStats, err)
	}
	defer statsStore.Close()
	if err := statsStore.Load(); err != nil {
		log.Warnf("%s Starting with empty stats: %v", logcolors.LogStats, err)
	}

	lyricsSources, err = resolveSources()
	if err != nil {
		log.Fatalf("%s %v", logcolors.LogConfig, err)
	}

	lyricsRegistry = newLyricsRegistry()
	sessions = session.NewManager(lyricsRegistry, conf.SessionIdleTimeout())
	limiter := middleware.NewIPRateLimiter(rate.Limit(conf.Configuration.RateLimitPerSecond), conf.Configuration.RateLimitBurstLimit)

	router := mux.NewRouter()
	setupRoutes(router)

	server := &http.Server{
		Addr:              ":" + conf.Server.Port,
		Handler:           buildHandler(router, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("%s Listening on port %s (formats: %v)", logcolors.LogServer, conf.Server.Port, lyricsRegistry.Formats())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("%s Shutting down", logcolors.LogServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sessions.Run(gctx, conf.SessionSweepInterval())
	})
	g.Go(func() error {
		return limiter.Run(gctx, limiterSweepEvery, limiterMaxIdleTime)
	})
	g.Go(func() error {
		return statsStore.Run(gctx, conf.StatsSaveInterval())
	})

	if err := g.Wait(); err != nil {
		log.Errorf("%s Server stopped with error: %v", logcolors.LogServer, err)
		return
	}
	log.Infof("%s Stopped", logcolors.LogServer)
}
