// Package config loads gateway settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"storefront-api/pkg/logger"
)

const DefaultBaseURL = "https://backend.gardenblossom.store/wp-json/wc/v3"

type Config struct {
	Port string `validate:"required,numeric"`

	WooCommerce WooCommerce
	Paging      Paging
	Cache       Cache
	Auth        Auth
	Client      ClientLimit
	Sessions    Sessions

	LogLevel  string `validate:"omitempty,oneof=trace debug info warn warning error"`
	LogFormat string `validate:"omitempty,oneof=console json"`
}

type WooCommerce struct {
	BaseURL        string        `validate:"required,url"`
	ConsumerKey    string        `validate:"required"`
	ConsumerSecret string        `validate:"required"`
	Timeout        time.Duration `validate:"gt=0"`
	RateLimit      float64       `validate:"gt=0"`
	RateBurst      int           `validate:"gte=1"`
}

type Paging struct {
	PageSize         int `validate:"gte=1,lte=100"`
	PrefetchDistance int `validate:"gte=1"`
}

type Cache struct {
	Enabled  bool
	RedisURL string        `validate:"required_if=Enabled true"`
	RedisDB  int           `validate:"gte=0"`
	TTL      time.Duration `validate:"gte=0"`
}

type Auth struct {
	APIKey  string
	BaseURL string `validate:"omitempty,url"`
}

// ClientLimit is the per-client inbound request limit. A client's bucket is
// dropped after IdleTTL without requests.
type ClientLimit struct {
	Rate    float64       `validate:"gt=0"`
	Burst   int           `validate:"gte=1"`
	IdleTTL time.Duration `validate:"gt=0"`
}

// Sessions bounds the life of browse and auth sessions a client stopped using.
type Sessions struct {
	IdleTTL time.Duration `validate:"gt=0"`
}

// LoadDotEnv copies .env into the environment without overriding set
// variables. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read .env: %w", err)
	}
	return nil
}

// Load reads .env (if present) and the process environment, then validates.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables with defaults for unset keys.
func FromEnv() *Config {
	return &Config{
		Port: getString("PORT", "8085"),
		WooCommerce: WooCommerce{
			BaseURL:        strings.TrimRight(getString("WC_BASE_URL", DefaultBaseURL), "/"),
			ConsumerKey:    getString("WC_CONSUMER_KEY", ""),
			ConsumerSecret: getString("WC_CONSUMER_SECRET", ""),
			Timeout:        getDuration("WC_TIMEOUT", 30*time.Second),
			RateLimit:      getFloat("WC_RATE_LIMIT", 10),
			RateBurst:      getInt("WC_RATE_BURST", 20),
		},
		Paging: Paging{
			PageSize:         getInt("PAGE_SIZE", 20),
			PrefetchDistance: getInt("PREFETCH_DISTANCE", 5),
		},
		Cache: Cache{
			Enabled:  getBool("CACHE_ENABLED", true),
			RedisURL: getString("REDIS_URL", "redis://localhost:6379"),
			RedisDB:  getInt("REDIS_DB", 0),
			TTL:      time.Duration(getInt("CACHE_TTL", 600)) * time.Second,
		},
		Auth: Auth{
			APIKey:  getString("AUTH_API_KEY", ""),
			BaseURL: getString("AUTH_BASE_URL", ""),
		},
		Client: ClientLimit{
			Rate:    getFloat("CLIENT_RATE_LIMIT", 10),
			Burst:   getInt("CLIENT_RATE_BURST", 20),
			IdleTTL: getDuration("CLIENT_IDLE_TTL", 10*time.Minute),
		},
		Sessions: Sessions{
			IdleTTL: getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
		LogLevel:  strings.ToLower(getString("LOG_LEVEL", "")),
		LogFormat: strings.ToLower(getString("LOG_FORMAT", "")),
	}
}

func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// LoggerOptions maps the log settings onto the logger package.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{Level: c.LogLevel, Format: c.LogFormat, Service: "storefront-api"}
}

func getString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", key).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

func getFloat(key string, def float64) float64 {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", key).Str("value", s).Float64("default", def).Msg("invalid float; using default")
	return def
}

func getBool(key string, def bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", key).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// getDuration accepts Go durations ("30s") or a bare number of seconds.
func getDuration(key string, def time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	logger.Get().Warn().Str("key", key).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}
