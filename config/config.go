package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Server struct {
		Port           string   `envconfig:"PORT" default:"8080"`
		AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
		LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
		LogFormat      string   `envconfig:"LOG_FORMAT" default:"json"` // json or text
	}

	Configuration struct {
		RateLimitPerSecond  int    `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
		RateLimitBurstLimit int    `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"40"`
		CacheAccessToken    string `envconfig:"CACHE_ACCESS_TOKEN" default:""`
		APIKey              string `envconfig:"API_KEY" default:""`
		APIKeyRequired      bool   `envconfig:"API_KEY_REQUIRED" default:"false"`

		CacheDBPath            string `envconfig:"CACHE_DB_PATH" default:"./data/cache.db"`
		CacheBackupPath        string `envconfig:"CACHE_BACKUP_PATH" default:"./data/backups"`
		NegativeCacheTTLInDays int    `envconfig:"NEGATIVE_CACHE_TTL_DAYS" default:"7"` // TTL for caching "no lyrics found" responses

		StatsDBPath           string `envconfig:"STATS_DB_PATH" default:"./data/stats.db"`
		StatsSaveIntervalSecs int    `envconfig:"STATS_SAVE_INTERVAL_SECS" default:"60"`

		// Providers are tried in this order when fetching raw lyrics
		Providers []string `envconfig:"PROVIDERS" default:"lrclib"`

		LRCLibBaseURL     string `envconfig:"LRCLIB_BASE_URL" default:"https://lrclib.net"`
		LRCLibTimeoutSecs int    `envconfig:"LRCLIB_TIMEOUT_SECS" default:"10"`
		UserAgent         string `envconfig:"USER_AGENT" default:"lyrics-sync-go/1.0"`

		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`      // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"` // Seconds to wait before retrying

		SessionIdleTimeoutSecs   int `envconfig:"SESSION_IDLE_TIMEOUT_SECS" default:"1800"`
		SessionSweepIntervalSecs int `envconfig:"SESSION_SWEEP_INTERVAL_SECS" default:"60"`
	}

	Lyrics struct {
		LeadInMs       int    `envconfig:"LEAD_IN_MS" default:"500"`      // lines show this much before their timestamp
		LineBreakStyle string `envconfig:"LINE_BREAK_STYLE" default:"lf"` // lf or crlf
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}

// LineBreak returns the line break selected by LINE_BREAK_STYLE
func (c Config) LineBreak() string {
	if strings.EqualFold(strings.TrimSpace(c.Lyrics.LineBreakStyle), "crlf") {
		return "\r\n"
	}
	return "\n"
}

// SessionIdleTimeout returns how long an untouched session is kept
func (c Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.Configuration.SessionIdleTimeoutSecs) * time.Second
}

// SessionSweepInterval returns how often idle sessions are reaped
func (c Config) SessionSweepInterval() time.Duration {
	return time.Duration(c.Configuration.SessionSweepIntervalSecs) * time.Second
}

// CircuitBreakerCooldown returns the open-state cooldown of the provider breakers
func (c Config) CircuitBreakerCooldown() time.Duration {
	return time.Duration(c.Configuration.CircuitBreakerCooldownSecs) * time.Second
}

// StatsSaveInterval returns how often counters are flushed to disk
func (c Config) StatsSaveInterval() time.Duration {
	return time.Duration(c.Configuration.StatsSaveIntervalSecs) * time.Second
}

// NegativeCacheTTL returns how long a "no lyrics" result is remembered
func (c Config) NegativeCacheTTL() time.Duration {
	return time.Duration(c.Configuration.NegativeCacheTTLInDays) * 24 * time.Hour
}

// LogLevel parses LOG_LEVEL, defaulting to info
func (c Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Server.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
