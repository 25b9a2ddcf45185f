package client

import (
	"context"
)

// GroundingRef is citation/reference metadata attached to a response.
type GroundingRef struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri"`
}

// Response is the upstream call result. The client treats it as opaque
// besides the text and the optional grounding list.
type Response struct {
	Text          string         `json:"text"`
	GroundingRefs []GroundingRef `json:"grounding_refs,omitempty"`
}

// Provider is the upstream inference collaborator. Implementations wrap a
// concrete remote API; errors they return are classified at this boundary
// (pre-tag with *APIError to bypass message matching).
type Provider interface {
	Generate(ctx context.Context, model, prompt string, cfg GenerationConfig) (*Response, error)
}

// StreamingProvider is implemented by providers that can deliver partial
// output incrementally. onChunk is invoked per increment; the returned
// Response carries the assembled full text.
type StreamingProvider interface {
	Provider
	GenerateStream(ctx context.Context, model, prompt string, cfg GenerationConfig, onChunk func(chunk string)) (*Response, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, model, prompt string, cfg GenerationConfig) (*Response, error)

// Generate implements Provider.
func (f ProviderFunc) Generate(ctx context.Context, model, prompt string, cfg GenerationConfig) (*Response, error) {
	return f(ctx, model, prompt, cfg)
}
