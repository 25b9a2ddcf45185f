// Package quota implements upstream quota tracking and request gating.
// It monitors the X-RateLimit-Remaining and X-RateLimit-Reset response
// headers so every process instance shares one view of the provider's
// remaining request budget, and stops spending retries on a provider that
// is already throttled.
package quota

import (
	"time"
)

// Redis keys for quota state storage.
const (
	RedisKeyRequestsRemaining = "genai:quota:requests_remaining"
	RedisKeyResetTimestamp    = "genai:quota:reset_timestamp"
	RedisKeyLastUpdate        = "genai:quota:last_update"
)

// Thresholds for quota decisions.
const (
	// ThresholdCritical blocks requests when the remaining budget falls
	// below this value, leaving headroom for in-flight calls.
	ThresholdCritical = 5

	// ThresholdWarning applies throttling when the remaining budget falls
	// below this value.
	ThresholdWarning = 20

	// ThresholdHealthy indicates normal operation; at or above this value
	// no restrictions apply.
	ThresholdHealthy = 50
)

// State represents the current upstream quota state, shared across all
// client instances via Redis.
type State struct {
	// RequestsRemaining is the provider's remaining request budget.
	// Extracted from the X-RateLimit-Remaining header.
	RequestsRemaining int `json:"requests_remaining"`

	// ResetAt is when the quota window resets, calculated from the
	// X-RateLimit-Reset header (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when RequestsRemaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.RequestsRemaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.RequestsRemaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the quota window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field from RequestsRemaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.RequestsRemaining >= ThresholdHealthy
}
