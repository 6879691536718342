// Package metrics exposes the Prometheus registry used by the Alchemy client.
// All metrics are defined in their respective packages (ratelimit, retry,
// client, pagination, cache, webhook) to keep those packages self-contained.
//
// This package provides the /metrics handler and a reference for all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - alchemy_ratelimit_admitted_total (Counter): Calls admitted by the sliding window
//   - alchemy_ratelimit_waits_total (Counter): Times a caller had to wait for admission
//   - alchemy_ratelimit_wait_seconds (Histogram): Time spent waiting for admission
//
// Retry Metrics (pkg/retry):
//   - alchemy_retries_total{error_kind} (Counter): Retry attempts by error kind
//   - alchemy_retry_backoff_seconds{error_kind} (Histogram): Backoff duration by error kind
//   - alchemy_retry_exhausted_total{error_kind} (Counter): Operations that exhausted max retries
//
// Request Metrics (pkg/client):
//   - alchemy_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - alchemy_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//
// Pagination Metrics (pkg/pagination):
//   - alchemy_pages_fetched_total (Counter): Pages fetched successfully
//   - alchemy_fetches_total{outcome} (Counter): Paginated fetches by outcome
//
// Cache Metrics (pkg/cache):
//   - alchemy_cache_hits_total (Counter): Cache hits
//   - alchemy_cache_misses_total (Counter): Cache misses
//   - alchemy_cache_bytes_total{direction} (Counter): Bytes read from / written to Redis
//   - alchemy_cache_errors_total{operation} (Counter): Cache operation errors
//
// Webhook Metrics (pkg/webhook):
//   - alchemy_webhook_events_total{type, outcome} (Counter): Webhook deliveries by event type and outcome
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(alchemy_cache_hits_total[5m])) /
//   (sum(rate(alchemy_cache_hits_total[5m])) + sum(rate(alchemy_cache_misses_total[5m])))
//
//   # Rate limited responses
//   rate(alchemy_retries_total{error_kind="rate_limited"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(alchemy_request_duration_seconds_bucket[5m]))
//
//   # P95 admission wait
//   histogram_quantile(0.95, rate(alchemy_ratelimit_wait_seconds_bucket[5m]))
