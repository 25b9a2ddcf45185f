// Package metrics provides the centralized Prometheus metrics registry for
// the generative-inference client. All metrics are defined in their
// respective packages (client, cache, usage, quota) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - genai_cache_hits_total (Counter): Fingerprint cache hits
//   - genai_cache_misses_total (Counter): Cache misses (including expired entries)
//   - genai_cache_evictions_total (Counter): Entries evicted for capacity
//   - genai_cache_size_bytes (Gauge): Current live payload size
//
// Request Metrics (pkg/client):
//   - genai_requests_total{model, outcome} (Counter): Requests by model and outcome
//     (success, invalid, policy_blocked, cancelled, exhausted)
//   - genai_request_duration_seconds{model} (Histogram): End-to-end latency
//   - genai_fallbacks_total{from_model} (Counter): Chain advances past a failed model
//
// Retry Metrics (pkg/client):
//   - genai_retries_total{error_class} (Counter): Retry attempts by error class
//   - genai_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - genai_retry_exhausted_total{error_class} (Counter): Calls that exhausted max retries
//
// Usage Metrics (pkg/usage):
//   - genai_usage_requests_total{model, cached} (Counter): Metered calls
//   - genai_usage_cost_dollars_total{model} (Counter): Estimated cumulative spend
//   - genai_usage_latency_seconds{model} (Histogram): Call latency
//
// Quota Metrics (pkg/quota):
//   - genai_quota_requests_remaining (Gauge): Remaining upstream budget
//   - genai_quota_blocks_total (Counter): Requests blocked in critical state
//   - genai_quota_throttles_total (Counter): Requests throttled in warning state
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   rate(genai_cache_hits_total[5m]) /
//   (rate(genai_cache_hits_total[5m]) + rate(genai_cache_misses_total[5m]))
//
//   # Fallback Rate
//   rate(genai_fallbacks_total[5m]) / rate(genai_requests_total[5m])
//
//   # P95 Generation Latency
//   histogram_quantile(0.95, rate(genai_request_duration_seconds_bucket[5m]))
//
//   # Spend per Hour by Model
//   rate(genai_usage_cost_dollars_total[1h]) * 3600
