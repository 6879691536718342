// Package config loads application settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sternrassler/alchemy-client/pkg/alchemy"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
)

type Config struct {
	Alchemy AlchemyConfig
	Redis   RedisConfig
	Webhook WebhookConfig
	Log     logging.Config
}

type AlchemyConfig struct {
	APIKey          string
	Network         string
	BaseURL         string
	PageSize        int
	RateLimitCalls  int
	RateLimitWindow time.Duration
	Timeout         time.Duration
	MaxRetries      int
}

// RedisConfig enables the response cache when URL is set.
type RedisConfig struct {
	URL string
}

type WebhookConfig struct {
	Secret string
	Addr   string
}

// Load reads the configuration. A missing .env file is ignored.
// ALCHEMY_API_KEY is required.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if cfg.Alchemy.APIKey == "" {
		return Config{}, fmt.Errorf("ALCHEMY_API_KEY is required")
	}
	return cfg, nil
}

// LoadOptional is Load without the API key requirement, for commands that
// do not call the API.
func LoadOptional() (Config, error) {
	_ = godotenv.Load()
	return load()
}

func load() (Config, error) {
	alchemyConfig, err := buildAlchemyConfig()
	if err != nil {
		return Config{}, err
	}

	pretty, err := getBool("LOG_PRETTY", false)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Alchemy: alchemyConfig,
		Redis:   RedisConfig{URL: getEnv("REDIS_URL", "")},
		Webhook: WebhookConfig{
			Secret: os.Getenv("WEBHOOK_SECRET"),
			Addr:   getEnv("WEBHOOK_ADDR", ":8080"),
		},
		Log: logging.Config{
			Level:  logging.LogLevel(getEnv("LOG_LEVEL", string(logging.LevelInfo))),
			Pretty: pretty,
			Output: os.Stderr,
		},
	}, nil
}

func buildAlchemyConfig() (AlchemyConfig, error) {
	defaults := alchemy.DefaultConfig("")

	pageSize, err := getInt("ALCHEMY_PAGE_SIZE", defaults.PageSize)
	if err != nil {
		return AlchemyConfig{}, err
	}
	calls, err := getInt("ALCHEMY_RATE_LIMIT_CALLS", defaults.RateLimitCalls)
	if err != nil {
		return AlchemyConfig{}, err
	}
	window, err := getDuration("ALCHEMY_RATE_LIMIT_WINDOW", defaults.RateLimitWindow)
	if err != nil {
		return AlchemyConfig{}, err
	}
	timeout, err := getDuration("ALCHEMY_TIMEOUT", defaults.RequestTimeout)
	if err != nil {
		return AlchemyConfig{}, err
	}
	maxRetries, err := getInt("ALCHEMY_MAX_RETRIES", defaults.Retry.MaxRetries)
	if err != nil {
		return AlchemyConfig{}, err
	}

	return AlchemyConfig{
		APIKey:          getEnv("ALCHEMY_API_KEY", ""),
		Network:         getEnv("ALCHEMY_NETWORK", defaults.Network),
		BaseURL:         getEnv("ALCHEMY_BASE_URL", ""),
		PageSize:        pageSize,
		RateLimitCalls:  calls,
		RateLimitWindow: window,
		Timeout:         timeout,
		MaxRetries:      maxRetries,
	}, nil
}

// ClientConfig maps the environment settings onto an alchemy.Config.
// The result is not validated.
func (c AlchemyConfig) ClientConfig() alchemy.Config {
	cfg := alchemy.DefaultConfig(c.APIKey)
	cfg.Network = c.Network
	cfg.BaseURL = c.BaseURL
	cfg.PageSize = c.PageSize
	cfg.RateLimitCalls = c.RateLimitCalls
	cfg.RateLimitWindow = c.RateLimitWindow
	cfg.RequestTimeout = c.Timeout
	cfg.Retry.MaxRetries = c.MaxRetries
	return cfg
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
