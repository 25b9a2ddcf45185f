package client

import (
	"github.com/arcfield/genai-client/pkg/cache"
	"github.com/arcfield/genai-client/pkg/quota"
	"github.com/arcfield/genai-client/pkg/sanitize"
	"github.com/arcfield/genai-client/pkg/usage"
)

// GenerationConfig holds the recognized, typed generation options. Every
// field affects output and participates in the cache fingerprint; there is
// no untyped pass-through besides Extra, which is fingerprinted in sorted
// key order.
type GenerationConfig struct {
	// Temperature is the sampling temperature.
	Temperature float64

	// SystemInstruction is the system prompt, if any.
	SystemInstruction string

	// ThinkingBudget is the extended-reasoning token budget (0 = disabled).
	ThinkingBudget int

	// SearchEnabled requests grounding via search.
	SearchEnabled bool

	// SearchQuery is an explicit search query to ground against.
	SearchQuery string

	// ToolsEnabled requests tool calling.
	ToolsEnabled bool

	// Extra carries additional provider options. Unknown options are passed
	// to the provider unchanged but always alter the fingerprint.
	Extra map[string]string
}

// Config holds the client configuration. Cache and Ledger are injected so a
// single instance of each can be shared across concurrent clients.
type Config struct {
	// Provider is the upstream inference collaborator (required).
	Provider Provider

	// Model is the primary model identifier (required).
	Model string

	// FallbackModels are tried in order after the primary fails.
	// Deduplicated against the primary and against each other.
	FallbackModels []string

	// Cache is the shared fingerprint cache (required).
	Cache *cache.Store

	// Ledger is the shared usage ledger (required).
	Ledger *usage.Ledger

	// Quota is the optional upstream quota guard. Nil disables gating.
	Quota *quota.Tracker

	// Retry is the per-model retry policy. Zero value uses
	// DefaultRetryPolicy.
	Retry RetryPolicy

	// Constraints bound prompt validation. Zero value uses
	// sanitize.DefaultConstraints.
	Constraints sanitize.Constraints
}

// DefaultConfig returns a configuration with the standard retry policy and
// validation constraints.
func DefaultConfig(provider Provider, model string, store *cache.Store, ledger *usage.Ledger) Config {
	return Config{
		Provider:    provider,
		Model:       model,
		Cache:       store,
		Ledger:      ledger,
		Retry:       DefaultRetryPolicy(),
		Constraints: sanitize.DefaultConstraints(),
	}
}
