package cache

import (
	"time"
)

// Entry represents a cached generation response.
type Entry struct {
	// Fingerprint is the cache key digest.
	Fingerprint string `json:"fingerprint"`

	// Payload is the cached response, opaque to the cache.
	Payload []byte `json:"payload"`

	// SizeBytes is the payload size used for capacity accounting.
	SizeBytes int `json:"size_bytes"`

	// CreatedAt is when the entry was inserted or last overwritten.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is when the entry was last returned by Get.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// expired reports whether the entry is past its TTL at the given time.
func (e *Entry) expired(now time.Time, ttl time.Duration) bool {
	return now.After(e.CreatedAt.Add(ttl))
}
