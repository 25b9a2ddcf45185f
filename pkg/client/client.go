// Package client provides the core generative-inference client with
// fingerprint caching, retry with error classification, model fallback, and
// usage metering.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/arcfield/genai-client/pkg/cache"
	"github.com/arcfield/genai-client/pkg/logging"
	"github.com/arcfield/genai-client/pkg/quota"
	"github.com/arcfield/genai-client/pkg/sanitize"
	"github.com/arcfield/genai-client/pkg/usage"
)

// Prometheus metrics for client operations.
var (
	genaiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_requests_total",
		Help: "Total generation requests by model and outcome",
	}, []string{"model", "outcome"})

	genaiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genai_request_duration_seconds",
		Help:    "End-to-end generation duration in seconds by model",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"model"})

	genaiFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_fallbacks_total",
		Help: "Times the chain advanced past a failed model",
	}, []string{"from_model"})
)

// Request is one inbound generation call.
type Request struct {
	// Prompt is the raw prompt text.
	Prompt string

	// Model overrides the configured primary model for this call.
	Model string

	// Config holds the generation options for this call.
	Config GenerationConfig

	// SessionID and AgentID attribute the call in the usage ledger.
	SessionID string
	AgentID   string

	// OnChunk, when set, selects the streaming path: each partial text
	// increment is delivered through it as it arrives. Streaming responses
	// are never cached.
	OnChunk func(chunk string)
}

// Result is the terminal outcome of a successful orchestration.
type Result struct {
	Text          string         `json:"text"`
	GroundingRefs []GroundingRef `json:"grounding_refs,omitempty"`
	LatencyMs     int64          `json:"latency_ms"`
	ModelUsed     string         `json:"model_used"`
	Cached        bool           `json:"cached"`
}

// cachePayload is the serialized form a cached result takes.
type cachePayload struct {
	Text          string         `json:"text"`
	GroundingRefs []GroundingRef `json:"grounding_refs,omitempty"`
	Model         string         `json:"model"`
}

// Client orchestrates generation calls across the fallback chain, checking
// the fingerprint cache before any network attempt and recording every
// terminal outcome in the usage ledger exactly once.
type Client struct {
	provider Provider
	store    *cache.Store
	ledger   *usage.Ledger
	guard    *quota.Tracker
	cfg      Config
	logger   zerolog.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("primary model is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("usage ledger is required")
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Retry.InitialDelay <= 0 || cfg.Retry.MaxDelay <= 0 {
		return nil, fmt.Errorf("retry delays must be positive")
	}
	if cfg.Retry.Multiplier <= 1 {
		return nil, fmt.Errorf("retry multiplier must be > 1 (got %v)", cfg.Retry.Multiplier)
	}
	if cfg.Constraints == (sanitize.Constraints{}) {
		cfg.Constraints = sanitize.DefaultConstraints()
	}

	return &Client{
		provider: cfg.Provider,
		store:    cfg.Cache,
		ledger:   cfg.Ledger,
		guard:    cfg.Quota,
		cfg:      cfg,
		logger:   logging.NewLogger("genai-client"),
	}, nil
}

// Generate runs one orchestrated call: validate, sanitize, then walk the
// fallback chain until a model succeeds, a policy block aborts, or the
// chain is exhausted.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	// Validation fails fast: no cache lookup, no network round-trip.
	if v := sanitize.ValidatePrompt(req.Prompt, c.cfg.Constraints); !v.IsValid {
		genaiRequestsTotal.WithLabelValues(c.primaryFor(req), "invalid").Inc()
		return nil, &ValidationError{Problems: v.Errors}
	}

	sanitized := sanitize.SanitizePrompt(req.Prompt)
	if !sanitized.IsClean {
		c.logger.Warn().
			Strs("issues", sanitized.DetectedIssues).
			Msg("Prompt sanitizer reported issues")
	}
	prompt := sanitized.SanitizedText

	chain := buildChain(c.primaryFor(req), c.cfg.FallbackModels)
	streaming := req.OnChunk != nil

	var lastErr error
	for i, model := range chain {
		result, err := c.tryModel(ctx, model, prompt, req, streaming, start)
		if err == nil {
			genaiRequestsTotal.WithLabelValues(model, "success").Inc()
			genaiRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
			return result, nil
		}

		switch class := Classify(err, c.cfg.Retry.RetryablePatterns); class {
		case ClassPolicy:
			// Policy/safety blocks are a hard stop for the whole chain.
			genaiRequestsTotal.WithLabelValues(model, "policy_blocked").Inc()
			c.ledger.Track(usage.TrackRequest{
				Model:     model,
				Prompt:    prompt,
				Latency:   time.Since(start),
				SessionID: req.SessionID,
				AgentID:   req.AgentID,
				Blocked:   true,
			})
			c.logger.Error().
				Err(err).
				Str("model", model).
				Msg("Generation blocked by upstream policy")
			return nil, err
		case ClassCancelled:
			genaiRequestsTotal.WithLabelValues(model, "cancelled").Inc()
			return nil, err
		}

		lastErr = err
		if i < len(chain)-1 {
			genaiFallbacksTotal.WithLabelValues(model).Inc()
			c.logger.Warn().
				Err(err).
				Str("model", model).
				Str("next_model", chain[i+1]).
				Msg("Model failed, advancing fallback chain")
		}
	}

	genaiRequestsTotal.WithLabelValues(chain[len(chain)-1], "exhausted").Inc()
	c.logger.Error().
		Err(lastErr).
		Int("models_tried", len(chain)).
		Msg("Fallback chain exhausted")

	return nil, &ExhaustionError{Attempts: len(chain), LastErr: lastErr}
}

// tryModel runs the cache check, the retried provider call, and the ledger
// write for a single model in the chain.
func (c *Client) tryModel(ctx context.Context, model, prompt string, req Request, streaming bool, start time.Time) (*Result, error) {
	key := c.cacheKey(model, prompt, req.Config)
	fp := key.Fingerprint()

	// Cache check precedes any network attempt. Streaming responses are
	// delivered incrementally and never enter the cache.
	if !streaming {
		if payload, err := c.store.Get(fp); err == nil {
			var cached cachePayload
			if jsonErr := json.Unmarshal(payload, &cached); jsonErr == nil {
				latency := time.Since(start)
				c.ledger.Track(usage.TrackRequest{
					Model:     cached.Model,
					Prompt:    prompt,
					Response:  cached.Text,
					Latency:   latency,
					SessionID: req.SessionID,
					AgentID:   req.AgentID,
					Cached:    true,
				})
				c.logger.Debug().
					Str("model", cached.Model).
					Bool("cache_hit", true).
					Msg("Serving generation from cache")
				return &Result{
					Text:          cached.Text,
					GroundingRefs: cached.GroundingRefs,
					LatencyMs:     latency.Milliseconds(),
					ModelUsed:     cached.Model,
					Cached:        true,
				}, nil
			}
			// Undecodable entries are treated as absent.
			c.logger.Warn().Str("fingerprint", fp[:12]).Msg("Dropping undecodable cache entry")
		}
	}

	// Gate on the shared upstream quota before spending retries.
	if c.guard != nil {
		allowed, err := c.guard.Allow(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Quota check failed, proceeding without gating")
		} else if !allowed {
			return nil, &APIError{
				StatusCode: 429,
				Class:      ClassTransport,
				Message:    "upstream quota critically exhausted",
			}
		}
	}

	resp, err := Execute(ctx, c.cfg.Retry, nil, func(ctx context.Context) (*Response, error) {
		return c.callProvider(ctx, model, prompt, req)
	})
	if err != nil {
		return nil, err
	}

	text := sanitize.SanitizeOutput(resp.Text)
	latency := time.Since(start)

	if !streaming {
		if payload, marshalErr := json.Marshal(cachePayload{
			Text:          text,
			GroundingRefs: resp.GroundingRefs,
			Model:         model,
		}); marshalErr == nil {
			c.store.Set(fp, payload)
		}
	}

	c.ledger.Track(usage.TrackRequest{
		Model:     model,
		Prompt:    prompt,
		Response:  text,
		Latency:   latency,
		SessionID: req.SessionID,
		AgentID:   req.AgentID,
		Cached:    false,
	})

	return &Result{
		Text:          text,
		GroundingRefs: resp.GroundingRefs,
		LatencyMs:     latency.Milliseconds(),
		ModelUsed:     model,
		Cached:        false,
	}, nil
}

// callProvider dispatches to the streaming entry point when the request
// asked for it and the provider supports it; otherwise the full response is
// fetched and delivered as a single chunk.
func (c *Client) callProvider(ctx context.Context, model, prompt string, req Request) (*Response, error) {
	if req.OnChunk != nil {
		if streamer, ok := c.provider.(StreamingProvider); ok {
			return streamer.GenerateStream(ctx, model, prompt, req.Config, req.OnChunk)
		}
	}

	resp, err := c.provider.Generate(ctx, model, prompt, req.Config)
	if err != nil {
		return nil, err
	}
	if req.OnChunk != nil {
		req.OnChunk(resp.Text)
	}
	return resp, nil
}

// CacheMetrics returns a snapshot of the fingerprint cache counters.
func (c *Client) CacheMetrics() cache.Metrics {
	return c.store.Metrics()
}

// UsageMetrics returns the aggregate usage view.
func (c *Client) UsageMetrics() usage.Metrics {
	return c.ledger.Metrics()
}

// ClearCache drops all cached responses and resets the cache counters.
func (c *Client) ClearCache() {
	c.store.Clear()
}

func (c *Client) primaryFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.cfg.Model
}

func (c *Client) cacheKey(model, prompt string, cfg GenerationConfig) cache.Key {
	return cache.Key{
		Prompt:            prompt,
		Model:             model,
		Temperature:       cfg.Temperature,
		SystemInstruction: cfg.SystemInstruction,
		ThinkingBudget:    cfg.ThinkingBudget,
		SearchEnabled:     cfg.SearchEnabled,
		SearchQuery:       cfg.SearchQuery,
		ToolsEnabled:      cfg.ToolsEnabled,
		Extra:             cfg.Extra,
	}
}
