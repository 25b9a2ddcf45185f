package usage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Record is a single metered call. Append-only; the ledger retains only the
// most recent records up to its configured capacity.
type Record struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMs    int64     `json:"latency_ms"`
	// EstimatedCost is in dollars. Always zero for cached or blocked calls.
	EstimatedCost float64 `json:"estimated_cost"`
	SessionID     string  `json:"session_id,omitempty"`
	AgentID       string  `json:"agent_id,omitempty"`
	Cached        bool    `json:"cached"`
	// Blocked marks calls rejected by an upstream policy/safety filter.
	// Recorded for observability with zero cost.
	Blocked bool `json:"blocked,omitempty"`
}

// TrackRequest carries the inputs for one ledger entry.
type TrackRequest struct {
	Model     string
	Prompt    string
	Response  string
	Latency   time.Duration
	SessionID string
	AgentID   string
	Cached    bool
	Blocked   bool
}

// ModelMetrics is the per-model aggregate slice of Metrics.
type ModelMetrics struct {
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Metrics is an aggregate view over the retained records. Derived on
// demand, never persisted.
type Metrics struct {
	TotalRequests     int                     `json:"total_requests"`
	TotalInputTokens  int                     `json:"total_input_tokens"`
	TotalOutputTokens int                     `json:"total_output_tokens"`
	TotalCost         float64                 `json:"total_cost"`
	AvgLatencyMs      float64                 `json:"avg_latency_ms"`
	CacheHitRate      float64                 `json:"cache_hit_rate"`
	ByModel           map[string]ModelMetrics `json:"by_model"`
}

// Export is a serializable snapshot of the ledger for offline analysis.
type Export struct {
	Records    []Record  `json:"records"`
	Metrics    Metrics   `json:"metrics"`
	ExportedAt time.Time `json:"exported_at"`
}

// Config holds ledger configuration.
type Config struct {
	// MaxRecords is the ring-buffer capacity; the oldest record is dropped
	// once the ledger is full.
	MaxRecords int
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() Config {
	return Config{MaxRecords: 1000}
}

// Ledger meters calls into a fixed-capacity ring buffer.
// Safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	records []Record
	start   int // index of the oldest record once the buffer is full
	max     int
	logger  zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// New creates a usage ledger.
func New(cfg Config, logger zerolog.Logger) (*Ledger, error) {
	if cfg.MaxRecords <= 0 {
		return nil, fmt.Errorf("max records must be positive (got %d)", cfg.MaxRecords)
	}

	return &Ledger{
		records: make([]Record, 0, cfg.MaxRecords),
		max:     cfg.MaxRecords,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Track appends a usage record for one call and returns it.
// Token counts are estimated via EstimateTokens; cost comes from the static
// price table and is forced to zero for cached and blocked calls.
func (l *Ledger) Track(req TrackRequest) Record {
	inputTokens := EstimateTokens(req.Prompt)
	outputTokens := EstimateTokens(req.Response)

	rec := Record{
		ID:            uuid.NewString(),
		Model:         req.Model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		LatencyMs:     req.Latency.Milliseconds(),
		EstimatedCost: EstimateCost(req.Model, inputTokens, outputTokens, req.Cached || req.Blocked),
		SessionID:     req.SessionID,
		AgentID:       req.AgentID,
		Cached:        req.Cached,
		Blocked:       req.Blocked,
	}

	l.mu.Lock()
	rec.Timestamp = l.now()
	if len(l.records) < l.max {
		l.records = append(l.records, rec)
	} else {
		// Ring-buffer overwrite: drop the oldest record.
		l.records[l.start] = rec
		l.start = (l.start + 1) % l.max
	}
	l.mu.Unlock()

	usageRequestsTotal.WithLabelValues(rec.Model, boolLabel(rec.Cached)).Inc()
	usageCostDollars.WithLabelValues(rec.Model).Add(rec.EstimatedCost)
	usageLatencySeconds.WithLabelValues(rec.Model).Observe(req.Latency.Seconds())

	l.logger.Debug().
		Str("model", rec.Model).
		Int("input_tokens", rec.InputTokens).
		Int("output_tokens", rec.OutputTokens).
		Float64("cost", rec.EstimatedCost).
		Bool("cache_hit", rec.Cached).
		Msg("Tracked usage")

	return rec
}

// Records returns the retained records, oldest first.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() []Record {
	out := make([]Record, 0, len(l.records))
	for i := 0; i < len(l.records); i++ {
		out = append(out, l.records[(l.start+i)%len(l.records)])
	}
	return out
}

// Metrics aggregates over all retained records. The per-model breakdown is
// initialized for every known model tier even with zero calls.
func (l *Ledger) Metrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return aggregate(l.snapshotLocked())
}

// SessionMetrics aggregates over one session's records. A session with no
// records yields zeroed metrics, not an error.
func (l *Ledger) SessionMetrics(sessionID string) Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	var filtered []Record
	for _, rec := range l.snapshotLocked() {
		if rec.SessionID == sessionID {
			filtered = append(filtered, rec)
		}
	}
	return aggregate(filtered)
}

// ExportSnapshot returns all records plus current aggregate metrics and an
// export timestamp.
func (l *Ledger) ExportSnapshot() Export {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.snapshotLocked()
	return Export{
		Records:    records,
		Metrics:    aggregate(records),
		ExportedAt: l.now(),
	}
}

func aggregate(records []Record) Metrics {
	m := Metrics{ByModel: make(map[string]ModelMetrics)}
	for _, model := range KnownModels() {
		m.ByModel[model] = ModelMetrics{}
	}

	var totalLatency int64
	var cacheHits, cacheLookups int
	for _, rec := range records {
		m.TotalRequests++
		m.TotalInputTokens += rec.InputTokens
		m.TotalOutputTokens += rec.OutputTokens
		m.TotalCost += rec.EstimatedCost
		totalLatency += rec.LatencyMs
		// Blocked calls never consulted the cache; they don't dilute the
		// hit rate.
		if !rec.Blocked {
			cacheLookups++
			if rec.Cached {
				cacheHits++
			}
		}

		mm := m.ByModel[rec.Model]
		mm.Requests++
		mm.InputTokens += rec.InputTokens
		mm.OutputTokens += rec.OutputTokens
		mm.Cost += rec.EstimatedCost
		m.ByModel[rec.Model] = mm
	}

	if m.TotalRequests > 0 {
		m.AvgLatencyMs = float64(totalLatency) / float64(m.TotalRequests)
	}
	if cacheLookups > 0 {
		m.CacheHitRate = float64(cacheHits) / float64(cacheLookups)
	}

	return m
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
