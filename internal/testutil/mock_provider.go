// Package testutil provides testing utilities for the generative-inference
// client.
package testutil

import (
	"context"
	"sync"

	"github.com/arcfield/genai-client/pkg/client"
)

// Outcome scripts one provider call: either a response or an error.
type Outcome struct {
	Text          string
	GroundingRefs []client.GroundingRef
	Err           error
}

// MockProvider is a scriptable upstream provider for testing. Outcomes are
// consumed per model, in order; once a model's script runs out, the last
// outcome repeats. Safe for concurrent use.
type MockProvider struct {
	mu      sync.Mutex
	scripts map[string][]Outcome

	// Tracking
	CallCount   int
	CallsByMod  map[string]int
	LastPrompt  string
	LastConfig  client.GenerationConfig
	ChunkSplits int // number of chunks GenerateStream splits responses into
}

// NewMockProvider creates an empty mock provider. Unscripted models return
// a default response echoing the model name.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		scripts:     make(map[string][]Outcome),
		CallsByMod:  make(map[string]int),
		ChunkSplits: 2,
	}
}

// Script queues outcomes for a model.
func (m *MockProvider) Script(model string, outcomes ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[model] = append(m.scripts[model], outcomes...)
}

// Generate implements client.Provider.
func (m *MockProvider) Generate(ctx context.Context, model, prompt string, cfg client.GenerationConfig) (*client.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcome := m.next(model, prompt, cfg)
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return &client.Response{Text: outcome.Text, GroundingRefs: outcome.GroundingRefs}, nil
}

// GenerateStream implements client.StreamingProvider, splitting the scripted
// text into ChunkSplits pieces.
func (m *MockProvider) GenerateStream(ctx context.Context, model, prompt string, cfg client.GenerationConfig, onChunk func(chunk string)) (*client.Response, error) {
	resp, err := m.Generate(ctx, model, prompt, cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	splits := m.ChunkSplits
	m.mu.Unlock()
	if splits < 1 {
		splits = 1
	}

	text := resp.Text
	size := (len(text) + splits - 1) / splits
	for i := 0; i < len(text); i += size {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		onChunk(text[i:end])
	}

	return resp, nil
}

func (m *MockProvider) next(model, prompt string, cfg client.GenerationConfig) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.CallsByMod[model]++
	m.LastPrompt = prompt
	m.LastConfig = cfg

	script := m.scripts[model]
	if len(script) == 0 {
		return Outcome{Text: "response from " + model}
	}

	outcome := script[0]
	if len(script) > 1 {
		m.scripts[model] = script[1:]
	}
	return outcome
}

// Calls returns the total number of provider invocations.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// CallsFor returns the number of invocations for one model.
func (m *MockProvider) CallsFor(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallsByMod[model]
}
