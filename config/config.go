package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port string `envconfig:"PORT" default:"8080"`

		// Rate limiting: normal tier covers fresh computations, the
		// cached tier only lets a client through to already-cached grids.
		RateLimitPerSecond        int `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit       int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		CachedRateLimitPerSecond  int `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"10"`
		CachedRateLimitBurstLimit int `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"20"`

		// Cache storage
		CacheDBPath            string `envconfig:"CACHE_DB_PATH" default:"./data/gridcache.db"`
		CacheBackupPath        string `envconfig:"CACHE_BACKUP_PATH" default:"./data/backups"`
		StatsDBPath            string `envconfig:"STATS_DB_PATH" default:"./data/stats.db"`
		NegativeCacheTTLInDays int    `envconfig:"NEGATIVE_CACHE_TTL_DAYS" default:"7"` // TTL for caching "no analysis available" responses

		// Admin access token for cache/stats/circuit-breaker endpoints
		AdminAccessToken string `envconfig:"ADMIN_ACCESS_TOKEN" default:""`

		// API key that bypasses rate limits entirely. When required,
		// all non-public endpoints demand it.
		APIKey         string `envconfig:"API_KEY" default:""`
		APIKeyRequired bool   `envconfig:"API_KEY_REQUIRED" default:"false"`

		// Upstream beat/chord analysis backend
		AnalysisBaseURL          string `envconfig:"ANALYSIS_BASE_URL" default:""`
		AnalysisTimeoutInSeconds int    `envconfig:"ANALYSIS_TIMEOUT_IN_SECONDS" default:"30"`
		DefaultChordModel        string `envconfig:"DEFAULT_CHORD_MODEL" default:"chord-cnn-lstm"`

		// Circuit breaker on the analysis backend
		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`    // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"` // Seconds to wait before retrying

		// CORS origins allowed to call the API (comma separated)
		AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
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
