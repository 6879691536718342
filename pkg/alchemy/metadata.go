package alchemy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/alchemy-client/pkg/cache"
	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
	"github.com/Sternrassler/alchemy-client/pkg/retry"
)

const endpointGetNFTMetadata = "getNFTMetadata"

// GetNFTMetadata fetches the metadata of one token. When a cache is
// configured a fresh cached response short-circuits the network.
func (c *Client) GetNFTMetadata(ctx context.Context, contract, tokenID string) (*NFT, error) {
	contract = strings.TrimSpace(contract)
	tokenID = strings.TrimSpace(tokenID)
	if contract == "" {
		return nil, asBadRequest(endpointGetNFTMetadata, errEmpty("contract address"))
	}
	if tokenID == "" {
		return nil, asBadRequest(endpointGetNFTMetadata, errEmpty("token id"))
	}

	q := url.Values{}
	q.Set("contractAddress", contract)
	q.Set("tokenId", tokenID)
	q.Set("refreshCache", "false")

	key := cache.Key{Network: c.config.Network, Endpoint: endpointGetNFTMetadata, Query: q}

	if nft, ok := c.cachedMetadata(ctx, key); ok {
		return nft, nil
	}

	req := client.Request{
		Method:   http.MethodGet,
		URL:      c.config.nftURL(endpointGetNFTMetadata),
		Query:    q,
		Endpoint: endpointGetNFTMetadata,
		Timeout:  c.config.RequestTimeout,
	}

	resp, err := retry.Execute(ctx, c.retrier, endpointGetNFTMetadata, c.config.Retry, func(ctx context.Context) (*client.Response, error) {
		resp, err := c.doer.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := client.CheckStatus(resp, req); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	nft, err := decodeMetadata(resp.Body)
	if err != nil {
		return nil, classify.Classify(endpointGetNFTMetadata, err)
	}

	if !nft.HasMetadata() {
		c.sink.Log(logging.Warn, "nft metadata incomplete", logging.Fields{
			"endpoint": endpointGetNFTMetadata,
			"contract": contract,
			"token_id": tokenID,
		})
	}

	c.storeMetadata(ctx, key, resp)
	return nft, nil
}

func decodeMetadata(body []byte) (*NFT, error) {
	var nft NFT
	if err := json.Unmarshal(body, &nft); err != nil {
		return nil, classify.Malformed("getNFTMetadata: decode response: %v", err)
	}
	if nft.Contract.Address == "" && nft.ID.TokenID == "" {
		return nil, classify.Malformed("getNFTMetadata: response has no contract or id")
	}
	return &nft, nil
}

func (c *Client) cachedMetadata(ctx context.Context, key cache.Key) (*NFT, bool) {
	if c.cache == nil {
		return nil, false
	}

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.sink.Log(logging.Warn, "cache get error", logging.Fields{"endpoint": key.Endpoint, "error": err})
		}
		return nil, false
	}

	nft, err := decodeMetadata(entry.Data)
	if err != nil {
		c.sink.Log(logging.Warn, "discarding unreadable cache entry", logging.Fields{"endpoint": key.Endpoint, "error": err})
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}

	c.sink.Log(logging.Debug, "cache hit", logging.Fields{"endpoint": key.Endpoint})
	return nft, true
}

func (c *Client) storeMetadata(ctx context.Context, key cache.Key, resp *client.Response) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, cache.FromResponse(resp, time.Now())); err != nil {
		c.sink.Log(logging.Warn, "failed to cache response", logging.Fields{"endpoint": key.Endpoint, "error": err})
	}
}
