package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the fingerprint was not found or the entry expired.
	ErrCacheMiss = errors.New("cache miss")
)

// Config holds cache configuration. Both values are fixed at construction
// time; build a new Store to change them.
type Config struct {
	// MaxSizeBytes is the total payload byte budget.
	MaxSizeBytes int

	// TTL is the per-entry time-to-live. Entries past their TTL are treated
	// as absent on lookup even before they are physically purged.
	TTL time.Duration
}

// DefaultConfig returns a safe default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes: 10 * 1024 * 1024,
		TTL:          5 * time.Minute,
	}
}

// Metrics is a point-in-time snapshot of cache counters.
type Metrics struct {
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	Evictions        uint64 `json:"evictions"`
	Entries          int    `json:"entries"`
	CurrentSizeBytes int    `json:"current_size_bytes"`
	MaxSizeBytes     int    `json:"max_size_bytes"`
}

// Store is an in-memory fingerprint cache bounded by total payload size and
// per-entry TTL. Eviction is least-recently-used by access time, with
// insertion order breaking ties. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	size    int
	cfg     Config
	logger  zerolog.Logger

	hits      uint64
	misses    uint64
	evictions uint64

	// now is swappable in tests.
	now func() time.Time
}

// New creates a cache store with the given configuration.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.MaxSizeBytes <= 0 {
		return nil, fmt.Errorf("max size must be positive (got %d)", cfg.MaxSizeBytes)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive (got %v)", cfg.TTL)
	}

	return &Store{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Get returns the payload cached under the fingerprint.
// Returns ErrCacheMiss if the fingerprint is unknown or the entry expired;
// expired entries are purged on lookup. A hit refreshes the entry's
// last-access time.
func (s *Store) Get(fingerprint string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	elem, ok := s.entries[fingerprint]
	if !ok {
		s.misses++
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	entry := elem.Value.(*Entry)
	if entry.expired(now, s.cfg.TTL) {
		s.removeLocked(elem)
		s.misses++
		cacheMisses.Inc()
		s.logger.Debug().
			Str("fingerprint", shortFP(fingerprint)).
			Msg("Purged expired cache entry on lookup")
		return nil, ErrCacheMiss
	}

	entry.LastAccessedAt = now
	s.lru.MoveToFront(elem)
	s.hits++
	cacheHits.Inc()

	return entry.Payload, nil
}

// Set stores the payload under the fingerprint, evicting least-recently-used
// entries as needed to respect the byte budget. Overwriting an existing
// fingerprint replaces the payload in place and refreshes both timestamps.
//
// A payload larger than the configured maximum is still stored after
// everything else has been evicted: the cache tolerates over-capacity of a
// single item rather than refusing to cache it.
func (s *Store) Set(fingerprint string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepExpiredLocked(now)

	newSize := len(payload)

	// Overwrite in place: retire the old payload's size first.
	if elem, ok := s.entries[fingerprint]; ok {
		entry := elem.Value.(*Entry)
		s.size -= entry.SizeBytes
		entry.Payload = payload
		entry.SizeBytes = newSize
		entry.CreatedAt = now
		entry.LastAccessedAt = now
		s.evictForLocked(newSize, elem)
		s.size += newSize
		s.lru.MoveToFront(elem)
		cacheSizeBytes.Set(float64(s.size))
		return
	}

	s.evictForLocked(newSize, nil)

	entry := &Entry{
		Fingerprint:    fingerprint,
		Payload:        payload,
		SizeBytes:      newSize,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	s.entries[fingerprint] = s.lru.PushFront(entry)
	s.size += newSize
	cacheSizeBytes.Set(float64(s.size))
}

// evictForLocked evicts LRU entries until newSize fits in the remaining
// budget. keep is never evicted (the entry being overwritten).
func (s *Store) evictForLocked(newSize int, keep *list.Element) {
	for s.size+newSize > s.cfg.MaxSizeBytes {
		victim := s.lru.Back()
		if victim != nil && victim == keep {
			victim = victim.Prev()
		}
		if victim == nil {
			// Single oversized payload: accepted over-capacity.
			s.logger.Debug().
				Int("size_bytes", newSize).
				Int("max_size_bytes", s.cfg.MaxSizeBytes).
				Msg("Caching payload larger than cache budget")
			return
		}

		entry := victim.Value.(*Entry)
		s.removeLocked(victim)
		s.evictions++
		cacheEvictions.Inc()
		s.logger.Debug().
			Str("fingerprint", shortFP(entry.Fingerprint)).
			Int("size_bytes", entry.SizeBytes).
			Msg("Evicted cache entry")
	}
}

// sweepExpiredLocked purges entries past their TTL so size accounting only
// covers live entries. TTL purges are not counted as evictions.
func (s *Store) sweepExpiredLocked(now time.Time) {
	for elem := s.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if entry := elem.Value.(*Entry); entry.expired(now, s.cfg.TTL) {
			s.removeLocked(elem)
		}
		elem = prev
	}
}

func (s *Store) removeLocked(elem *list.Element) {
	entry := elem.Value.(*Entry)
	s.lru.Remove(elem)
	delete(s.entries, entry.Fingerprint)
	s.size -= entry.SizeBytes
	cacheSizeBytes.Set(float64(s.size))
}

// Metrics returns a snapshot of the cache counters. Expired entries are
// purged first so the reported size only covers live entries.
func (s *Store) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepExpiredLocked(s.now())

	return Metrics{
		Hits:             s.hits,
		Misses:           s.misses,
		Evictions:        s.evictions,
		Entries:          s.lru.Len(),
		CurrentSizeBytes: s.size,
		MaxSizeBytes:     s.cfg.MaxSizeBytes,
	}
}

// Clear removes all entries and resets all counters.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.lru.Init()
	s.size = 0
	s.hits = 0
	s.misses = 0
	s.evictions = 0
	cacheSizeBytes.Set(0)
}

// shortFP truncates a fingerprint for log output.
func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
