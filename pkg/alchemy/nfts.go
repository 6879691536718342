package alchemy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/pagination"
)

// NFT is a token as returned by the NFT API (getNFTs and getNFTMetadata).
type NFT struct {
	Contract        Contract        `json:"contract"`
	ID              TokenID         `json:"id"`
	Balance         string          `json:"balance,omitempty"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	TokenURI        URI             `json:"tokenUri"`
	Media           []URI           `json:"media,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	TimeLastUpdated string          `json:"timeLastUpdated,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// Contract identifies the token contract.
type Contract struct {
	Address string `json:"address"`
}

// TokenID is the token identifier and its standard.
type TokenID struct {
	TokenID       string `json:"tokenId"`
	TokenMetadata struct {
		TokenType string `json:"tokenType"`
	} `json:"tokenMetadata"`
}

// URI is a raw URI with the gateway URL Alchemy resolved for it.
type URI struct {
	Raw     string `json:"raw"`
	Gateway string `json:"gateway"`
}

// HasMetadata reports whether the token carries a non-empty metadata object.
func (n NFT) HasMetadata() bool {
	m := strings.TrimSpace(string(n.Metadata))
	return m != "" && m != "null" && m != "{}"
}

// NFTOptions tunes GetNFTsForOwner.
type NFTOptions struct {
	// PageSize <= 0 uses Config.PageSize.
	PageSize int
	// MaxPages == 0 uses Config.MaxPages; negative means unlimited.
	MaxPages int
	// IncludeSpam disables the SPAM exclude filter.
	IncludeSpam bool
	// WithoutMetadata requests the lighter response without token metadata.
	WithoutMetadata bool
	// Contracts restricts results to the given contract addresses.
	Contracts []string
}

type getNFTsResponse struct {
	OwnedNFTs  *[]NFT `json:"ownedNfts"`
	PageKey    string `json:"pageKey"`
	TotalCount int    `json:"totalCount"`
}

// GetNFTsForOwner fetches every NFT held by owner, page by page.
// The result carries partial items when a page fails.
func (c *Client) GetNFTsForOwner(ctx context.Context, owner string, opts NFTOptions) pagination.Result[NFT] {
	build, err := c.nftsRequestBuilder(owner, opts)
	if err != nil {
		return pagination.Result[NFT]{Items: []NFT{}, Err: asBadRequest("getNFTs", err)}
	}
	return c.nfts.Fetch(ctx, build, parseNFTsPage, opts.PageSize, opts.MaxPages)
}

// NFTJob returns a pagination job for owner, for use with a BatchFetcher
// built from NFTFetcher.
func (c *Client) NFTJob(owner string, opts NFTOptions) (pagination.Job[NFT], error) {
	build, err := c.nftsRequestBuilder(owner, opts)
	if err != nil {
		return pagination.Job[NFT]{}, err
	}
	return pagination.Job[NFT]{
		Key:      owner,
		Build:    build,
		Parse:    parseNFTsPage,
		PageSize: opts.PageSize,
		MaxPages: opts.MaxPages,
	}, nil
}

// NFTFetcher returns the fetcher used for getNFTs.
func (c *Client) NFTFetcher() *pagination.Fetcher[NFT] {
	return c.nfts
}

// GetNFTsForOwners fetches several owners concurrently. All fetches share the
// client's rate limiter. A repeated owner is fetched once.
func (c *Client) GetNFTsForOwners(ctx context.Context, owners []string, opts NFTOptions, concurrency int) map[string]pagination.Result[NFT] {
	results := make(map[string]pagination.Result[NFT], len(owners))
	jobs := make([]pagination.Job[NFT], 0, len(owners))
	seen := make(map[string]struct{}, len(owners))
	for _, owner := range owners {
		if _, dup := seen[owner]; dup {
			continue
		}
		seen[owner] = struct{}{}
		job, err := c.NFTJob(owner, opts)
		if err != nil {
			results[owner] = pagination.Result[NFT]{Items: []NFT{}, Err: asBadRequest("getNFTs", err)}
			continue
		}
		jobs = append(jobs, job)
	}

	for key, res := range pagination.NewBatchFetcher(c.nfts, concurrency).FetchAll(ctx, jobs) {
		results[key] = res
	}
	return results
}

func (c *Client) nftsRequestBuilder(owner string, opts NFTOptions) (pagination.RequestBuilder, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errEmpty("owner")
	}

	endpoint := c.config.nftURL("getNFTs")

	return func(pr pagination.PageRequest) (client.Request, error) {
		q := url.Values{}
		q.Set("owner", owner)
		q.Set("pageSize", strconv.Itoa(pr.PageSize))
		q.Set("withMetadata", strconv.FormatBool(!opts.WithoutMetadata))
		if !opts.IncludeSpam {
			q.Add("excludeFilters[]", "SPAM")
		}
		for _, contract := range opts.Contracts {
			q.Add("contractAddresses[]", contract)
		}
		if pr.Cursor != "" {
			q.Set("pageKey", pr.Cursor)
		}

		return client.Request{
			Method:   http.MethodGet,
			URL:      endpoint,
			Query:    q,
			Endpoint: "getNFTs",
			Timeout:  c.config.RequestTimeout,
		}, nil
	}, nil
}

func parseNFTsPage(resp *client.Response) (pagination.Page[NFT], error) {
	var env getNFTsResponse
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return pagination.Page[NFT]{}, classify.Malformed("getNFTs: decode response: %v", err)
	}
	if env.OwnedNFTs == nil {
		return pagination.Page[NFT]{}, classify.Malformed("getNFTs: response has no ownedNfts")
	}
	return pagination.Page[NFT]{Items: *env.OwnedNFTs, NextCursor: env.PageKey}, nil
}
