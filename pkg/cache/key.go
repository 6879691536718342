package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every cache key.
const keyPrefix = "alchemy"

// Key identifies a cached response.
type Key struct {
	// Network is the chain network, e.g. "eth-mainnet".
	Network string

	// Endpoint is the logical endpoint name, never a URL carrying credentials.
	Endpoint string

	// Query holds the request parameters.
	Query url.Values
}

// String generates a deterministic cache key.
// Format: alchemy:network:endpoint:key1=v1,v2:key2=v3
//
// Example:
//
//	alchemy:eth-mainnet:getNFTMetadata:contractAddress=0xabc:tokenId=1
func (k Key) String() string {
	parts := []string{keyPrefix}

	if k.Network != "" {
		parts = append(parts, k.Network)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		queryKeys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.Query[key]...)
			sort.Strings(values)
			parts = append(parts, key+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, ":")
}
