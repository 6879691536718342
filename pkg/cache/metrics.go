package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alchemy_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks cache misses, expired entries included
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alchemy_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheBytes tracks bytes moved through the cache by direction
	CacheBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alchemy_cache_bytes_total",
			Help: "Bytes written to and read from the response cache",
		},
		[]string{"direction"}, // "read", "write"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alchemy_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
