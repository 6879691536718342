package alchemy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Sternrassler/alchemy-client/pkg/retry"
)

// ErrInvalidAPIKey is returned when the API key does not have the Alchemy key format.
var ErrInvalidAPIKey = errors.New("invalid alchemy api key format")

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{32,}$`)

// ValidateAPIKey reports whether key has the shape of an Alchemy API key.
// It does not contact the API.
func ValidateAPIKey(key string) bool {
	return apiKeyPattern.MatchString(key)
}

// Config holds the API client configuration.
type Config struct {
	// APIKey is embedded in request paths (REQUIRED).
	APIKey string

	// Network selects the chain, e.g. "eth-mainnet" or "polygon-mainnet".
	Network string

	// BaseURL overrides https://{network}.g.alchemy.com, mostly for tests.
	BaseURL string

	// Paging
	PageSize  int
	MaxPages  int           // 0 = unlimited
	PageDelay time.Duration // courtesy pause between pages

	// Rate limiting, shared by every request of the client
	RateLimitCalls  int
	RateLimitWindow time.Duration

	// RequestTimeout bounds each HTTP exchange.
	RequestTimeout time.Duration

	// Retry
	Retry retry.Policy

	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:          apiKey,
		Network:         "eth-mainnet",
		PageSize:        100,
		MaxPages:        0,
		RateLimitCalls:  300,
		RateLimitWindow: 60 * time.Second,
		RequestTimeout:  30 * time.Second,
		Retry:           retry.DefaultPolicy(),
		UserAgent:       "alchemy-client/1.0",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if !ValidateAPIKey(c.APIKey) {
		return ErrInvalidAPIKey
	}
	if c.Network == "" && c.BaseURL == "" {
		return fmt.Errorf("network or base url is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive (got %d)", c.PageSize)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages must be >= 0 (got %d)", c.MaxPages)
	}
	if c.RateLimitCalls <= 0 {
		return fmt.Errorf("rate limit calls must be positive (got %d)", c.RateLimitCalls)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive (got %v)", c.RateLimitWindow)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must be >= 0 (got %v)", c.RequestTimeout)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry policy: %w", err)
	}
	return nil
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.g.alchemy.com", c.Network)
}

// nftURL returns the NFT API URL for method, e.g. getNFTs.
func (c Config) nftURL(method string) string {
	return fmt.Sprintf("%s/nft/v2/%s/%s", c.baseURL(), c.APIKey, method)
}

// rpcURL returns the JSON-RPC endpoint.
func (c Config) rpcURL() string {
	return fmt.Sprintf("%s/v2/%s", c.baseURL(), c.APIKey)
}
