// Package cache provides an optional Redis response cache for single-resource
// lookups such as NFT metadata.
//
// Paginated fetches never go through the cache: a page depends on a cursor the
// server hands out per walk, and the fetcher itself holds no persistent state.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "getNFTMetadata",
//		Query:    url.Values{"contractAddress": {addr}, "tokenId": {"1"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch, then manager.Set(ctx, key, cache.FromResponse(resp, time.Now()))
//	}
//
// Keys never include the API key; callers pass the endpoint name and the
// request parameters only.
//
// # Metrics
//
//   - alchemy_cache_hits_total - Cache hits
//   - alchemy_cache_misses_total - Cache misses
//   - alchemy_cache_bytes_total - Bytes written to / read from Redis
//   - alchemy_cache_errors_total{operation} - Cache operation errors
package cache
