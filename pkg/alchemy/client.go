// Package alchemy provides rate-limited, retrying access to the Alchemy NFT and
// JSON-RPC APIs on top of the generic pagination, retry and ratelimit packages.
package alchemy

import (
	"fmt"

	"github.com/Sternrassler/alchemy-client/pkg/cache"
	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
	"github.com/Sternrassler/alchemy-client/pkg/pagination"
	"github.com/Sternrassler/alchemy-client/pkg/ratelimit"
	"github.com/Sternrassler/alchemy-client/pkg/retry"
)

// Options carries optional collaborators for New.
type Options struct {
	// Doer performs HTTP exchanges (default: client.HTTPTransport).
	Doer client.Doer

	// Limiter is shared by every request (default: a new limiter from Config).
	Limiter *ratelimit.Limiter

	// Cache enables response caching for single-resource lookups.
	Cache *cache.Manager

	// Classifier overrides classify.Default.
	Classifier classify.Classifier

	// Sink receives events from the limiter, retrier and fetchers.
	Sink logging.Sink
}

// Client is the Alchemy API client. It is safe for concurrent use; all calls
// share one rate limiter.
type Client struct {
	config  Config
	doer    client.Doer
	limiter *ratelimit.Limiter
	retrier *retry.Retrier
	cache   *cache.Manager
	sink    logging.Sink

	// gatewayRetrier fetches off-API content (IPFS) without consuming the API budget.
	gatewayRetrier *retry.Retrier

	nfts      *pagination.Fetcher[NFT]
	transfers *pagination.Fetcher[Transfer]
}

// New creates a new Alchemy client.
func New(cfg Config, opts Options) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sink := logging.OrNop(opts.Sink)

	doer := opts.Doer
	if doer == nil {
		transport, err := client.New(client.Config{
			UserAgent:    cfg.UserAgent,
			Timeout:      cfg.RequestTimeout,
			MaxBodyBytes: client.DefaultConfig().MaxBodyBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		doer = transport
	}

	limiter := opts.Limiter
	if limiter == nil {
		var err error
		limiter, err = ratelimit.NewLimiter(cfg.RateLimitCalls, cfg.RateLimitWindow, sink)
		if err != nil {
			return nil, fmt.Errorf("create rate limiter: %w", err)
		}
	}

	retrier := retry.New(retry.Options{
		Classifier: opts.Classifier,
		Limiter:    limiter,
		Sink:       sink,
	})

	pageCfg := pagination.Config{
		PageSize:  cfg.PageSize,
		MaxPages:  cfg.MaxPages,
		Policy:    cfg.Retry,
		PageDelay: cfg.PageDelay,
	}

	nfts, err := pagination.NewFetcher[NFT](doer, retrier, pageCfg, sink)
	if err != nil {
		return nil, fmt.Errorf("create nft fetcher: %w", err)
	}
	transfers, err := pagination.NewFetcher[Transfer](doer, retrier, pageCfg, sink)
	if err != nil {
		return nil, fmt.Errorf("create transfer fetcher: %w", err)
	}

	return &Client{
		config:         cfg,
		doer:           doer,
		limiter:        limiter,
		retrier:        retrier,
		cache:          opts.Cache,
		sink:           sink,
		gatewayRetrier: retry.New(retry.Options{Classifier: opts.Classifier, Sink: sink}),
		nfts:           nfts,
		transfers:      transfers,
	}, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Limiter returns the shared rate limiter.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}
