package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks fingerprint cache hits.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genai_cache_hits_total",
			Help: "Total number of fingerprint cache hits",
		},
	)

	// cacheMisses tracks fingerprint cache misses (including expired entries).
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genai_cache_misses_total",
			Help: "Total number of fingerprint cache misses",
		},
	)

	// cacheEvictions tracks LRU evictions caused by the byte budget.
	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genai_cache_evictions_total",
			Help: "Total number of cache entries evicted for capacity",
		},
	)

	// cacheSizeBytes tracks the current live payload size.
	cacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genai_cache_size_bytes",
			Help: "Current size of the fingerprint cache in bytes",
		},
	)
)
