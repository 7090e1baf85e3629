// Package config loads the process configuration from the environment:
// godotenv populates the process environment from a local .env file (if
// present) before the typed getters read it, so a developer machine and
// a container deployment use the exact same code path.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AuthMode selects how the REST façade resolves a bearer token into a
// user id.
type AuthMode string

const (
	AuthModeJWT AuthMode = "JWT"
	AuthModeUID AuthMode = "UID"
)

// Config is the fully resolved process configuration.
type Config struct {
	MarketName string

	HTTPPort int

	TokenPrefix string
	AuthMode    AuthMode
	JWTSecret   string
	JWTAlgorithm string
	JWTAccessTokenMinutes int

	QuoteProviderBaseURL   string
	QuoteProviderAPIKey    string
	QuoteProviderTimeout   time.Duration
	QuoteStreamURL         string
	QuoteStreamTickTTL     time.Duration

	DurableStoreURI string
	FastStoreURI    string

	Encoding string
	LogLevel string

	TradingTimezone string

	SchedulerLockFile string

	EntrustQueueDepth int
	BusQueueDepth     int
}

// Load builds a Config from the process environment, after attempting to
// populate it from a .env file in the working directory. Missing optional
// keys fall back to defaults suitable for local development; DurableStoreURI
// and FastStoreURI have no default because a misconfigured store must fail
// loudly at startup rather than silently use the wrong database.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MarketName:            getEnv("MARKET_NAME", "china_a"),
		HTTPPort:               getEnvAsInt("HTTP_PORT", 8080),
		TokenPrefix:            getEnv("TOKEN_PREFIX", "Bearer"),
		AuthMode:               AuthMode(getEnv("AUTH_MODE", string(AuthModeJWT))),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		JWTAlgorithm:           getEnv("JWT_ALGORITHM", "HS256"),
		JWTAccessTokenMinutes:  getEnvAsInt("JWT_ACCESS_TOKEN_MINUTES", 60*24),
		QuoteProviderBaseURL:   getEnv("QUOTE_PROVIDER_BASE_URL", "http://localhost:9000"),
		QuoteProviderAPIKey:    getEnv("QUOTE_PROVIDER_API_KEY", ""),
		QuoteProviderTimeout:   time.Duration(getEnvAsInt("QUOTE_PROVIDER_TIMEOUT_MS", 2000)) * time.Millisecond,
		QuoteStreamURL:         getEnv("QUOTE_STREAM_URL", ""),
		QuoteStreamTickTTL:     time.Duration(getEnvAsInt("QUOTE_STREAM_TICK_TTL_MS", 3000)) * time.Millisecond,
		DurableStoreURI:        getEnv("DURABLE_STORE_URI", ""),
		FastStoreURI:           getEnv("FAST_STORE_URI", ""),
		Encoding:               getEnv("ENCODING", "utf-8"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		TradingTimezone:        getEnv("TRADING_TIMEZONE", "Asia/Shanghai"),
		SchedulerLockFile:      getEnv("SCHEDULER_LOCK_FILE", "/tmp/paper-trading-1.scheduler.lock"),
		EntrustQueueDepth:      getEnvAsInt("ENTRUST_QUEUE_DEPTH", 4096),
		BusQueueDepth:          getEnvAsInt("BUS_QUEUE_DEPTH", 4096),
	}

	return cfg, cfg.Validate()
}

// Validate checks for configuration combinations that would otherwise fail
// much later, deep inside a request handler.
func (c *Config) Validate() error {
	if c.DurableStoreURI == "" {
		return fmt.Errorf("config: DURABLE_STORE_URI is required")
	}
	if c.FastStoreURI == "" {
		return fmt.Errorf("config: FAST_STORE_URI is required")
	}
	switch c.AuthMode {
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("config: JWT_SECRET is required when AUTH_MODE=JWT")
		}
	case AuthModeUID:
		// no extra requirements
	default:
		return fmt.Errorf("config: invalid AUTH_MODE %q", c.AuthMode)
	}
	if _, err := time.LoadLocation(c.TradingTimezone); err != nil {
		return fmt.Errorf("config: invalid TRADING_TIMEZONE %q: %w", c.TradingTimezone, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
