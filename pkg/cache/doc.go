// Package cache provides an in-memory fingerprint cache for generation
// responses, bounded by total payload size and per-entry TTL.
//
// A fingerprint is a sha256 digest over the prompt text plus every
// generation option that affects output (model, temperature, system
// instruction, thinking budget, tool and search flags). Serialization uses
// a fixed field order, so two Keys with identical fields always hash the
// same no matter how they were built.
//
// # Basic Usage
//
//	store, err := cache.New(cache.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//
//	key := cache.Key{
//		Prompt: "Summarize the quarterly report",
//		Model:  "gemini-2.5-flash",
//	}
//	fp := key.Fingerprint()
//
//	payload, err := store.Get(fp)
//	if err == cache.ErrCacheMiss {
//		// Miss - call the provider, then store.Set(fp, payload)
//	}
//
// # Eviction Policy
//
// When an insert would exceed the byte budget, entries are evicted in
// least-recently-accessed order (insertion order breaks ties) until the new
// payload fits. A single payload larger than the whole budget is still
// stored after everything else has been evicted: the cache tolerates
// over-capacity of one item rather than refusing to cache it.
//
// Expired entries are treated as absent on lookup and purged lazily; TTL
// purges do not count as evictions.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - genai_cache_hits_total - Cache hits
//   - genai_cache_misses_total - Cache misses
//   - genai_cache_evictions_total - Capacity evictions
//   - genai_cache_size_bytes - Current live payload size
package cache
