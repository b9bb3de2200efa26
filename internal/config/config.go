package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName       = "VaultPay"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultListCacheTTL  = time.Hour
	defaultCacheLockTTL  = 10 * time.Second
	defaultCacheLockWait = 100 * time.Millisecond
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration

	// ListCacheTTL is the staleness backstop on cached transaction pages.
	ListCacheTTL time.Duration
	// CacheLockTTL bounds how long a cache repopulation lock can be held.
	CacheLockTTL time.Duration
	// CacheLockWait is the single fixed wait before re-checking a key whose
	// repopulation lock another caller holds.
	CacheLockWait time.Duration
}

// Load reads configuration values from the environment (and an optional
// .env file) and populates a Config instance.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		ListCacheTTL:   defaultListCacheTTL,
		CacheLockTTL:   defaultCacheLockTTL,
		CacheLockWait:  defaultCacheLockWait,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.ListCacheTTL, err = durationEnv("LIST_CACHE_TTL", cfg.ListCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.CacheLockTTL, err = durationEnv("CACHE_LOCK_TTL", cfg.CacheLockTTL); err != nil {
		return Config{}, err
	}
	if cfg.CacheLockWait, err = durationEnv("CACHE_LOCK_WAIT", cfg.CacheLockWait); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
