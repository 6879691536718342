package alchemy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
	"github.com/Sternrassler/alchemy-client/pkg/retry"
)

// Public IPFS HTTP gateways, in the order they are tried.
var DefaultIPFSGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://dweb.link/ipfs/",
}

// ResolveIPFS maps ipfs:// and ipfs:/ URIs onto the first default gateway.
// Other URIs are returned unchanged.
func ResolveIPFS(uri string) string {
	return ResolveIPFSWith(uri, DefaultIPFSGateways[0])
}

// ResolveIPFSWith maps an IPFS URI onto gateway, which must end in "/ipfs/".
func ResolveIPFSWith(uri, gateway string) string {
	uri = strings.TrimSpace(uri)

	var path string
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		path = strings.TrimPrefix(uri, "ipfs://")
	case strings.HasPrefix(uri, "ipfs:/"):
		path = strings.TrimPrefix(uri, "ipfs:/")
	default:
		return uri
	}
	// ipfs://ipfs/<cid> is a common malformed variant.
	path = strings.TrimPrefix(path, "ipfs/")
	return gateway + path
}

// IsIPFS reports whether uri uses the ipfs scheme.
func IsIPFS(uri string) bool {
	return strings.HasPrefix(strings.TrimSpace(uri), "ipfs:/")
}

// FetchTokenURI downloads the document behind a token URI. IPFS URIs are
// tried against each gateway in turn. Gateway requests are retried but do not
// count against the API rate limit.
func (c *Client) FetchTokenURI(ctx context.Context, uri string, gateways ...string) (*client.Response, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, asBadRequest("fetch token uri", errEmpty("uri"))
	}
	if len(gateways) == 0 {
		gateways = DefaultIPFSGateways
	}

	targets := []string{uri}
	if IsIPFS(uri) {
		targets = targets[:0]
		for _, gw := range gateways {
			targets = append(targets, ResolveIPFSWith(uri, gw))
		}
	}

	var lastErr error
	for i, target := range targets {
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			return nil, asBadRequest("fetch token uri", fmt.Errorf("unsupported uri scheme: %q", target))
		}

		req := client.Request{Method: http.MethodGet, URL: target, Endpoint: "token_uri", Timeout: c.config.RequestTimeout}
		resp, err := retry.Execute(ctx, c.gatewayRetrier, "fetch token uri", c.config.Retry, func(ctx context.Context) (*client.Response, error) {
			resp, err := c.doer.Do(ctx, req)
			if err != nil {
				return nil, err
			}
			if err := client.CheckStatus(resp, req); err != nil {
				return nil, err
			}
			return resp, nil
		})
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, classify.ErrCancelled) {
			return nil, err
		}

		lastErr = err
		if i < len(targets)-1 {
			c.sink.Log(logging.Warn, "gateway failed, trying next", logging.Fields{
				"attempt": i + 1,
				"error":   err,
			})
		}
	}
	return nil, lastErr
}
