package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/arcfield/genai-client/pkg/cache"
	"github.com/arcfield/genai-client/pkg/client"
	"github.com/arcfield/genai-client/pkg/logging"
	"github.com/arcfield/genai-client/pkg/quota"
	"github.com/arcfield/genai-client/pkg/usage"
)

func main() {
	// Configuration from environment
	port := getEnv("PORT", "8080")
	redisURL := os.Getenv("REDIS_URL")
	modelChain := strings.Split(getEnv("MODEL_CHAIN", "gemini-2.5-flash,gemini-2.5-flash-lite"), ",")
	apiURL := getEnv("GENAI_API_URL", "https://generativelanguage.googleapis.com")
	apiKey := os.Getenv("GENAI_API_KEY")

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
	})
	logger := logging.NewLogger("genai-proxy")

	store, err := cache.New(cache.DefaultConfig(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache")
	}
	ledger, err := usage.New(usage.DefaultConfig(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create usage ledger")
	}

	// The quota guard is optional: without Redis every request is allowed.
	var guard *quota.Tracker
	var redisClient *redis.Client
	if redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		guard = quota.NewTracker(redisClient, logger)
		logger.Info().Str("redis_url", redisURL).Msg("Quota guard enabled")
	}

	provider := newGeminiProvider(apiURL, apiKey, guard)

	cfg := client.DefaultConfig(provider, strings.TrimSpace(modelChain[0]), store, ledger)
	cfg.Quota = guard
	for _, m := range modelChain[1:] {
		cfg.FallbackModels = append(cfg.FallbackModels, strings.TrimSpace(m))
	}

	genai, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create client")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/generate", generateHandler(genai, logger))
	mux.HandleFunc("GET /v1/usage", usageHandler(ledger))
	mux.HandleFunc("GET /cache/metrics", cacheMetricsHandler(genai))
	mux.HandleFunc("POST /cache/clear", cacheClearHandler(genai, logger))
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(redisClient))
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Strs("model_chain", modelChain).
		Msg("Starting genai proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// generateRequest is the JSON body of POST /v1/generate.
type generateRequest struct {
	Prompt            string            `json:"prompt"`
	Model             string            `json:"model,omitempty"`
	Temperature       float64           `json:"temperature,omitempty"`
	SystemInstruction string            `json:"system_instruction,omitempty"`
	ThinkingBudget    int               `json:"thinking_budget,omitempty"`
	SearchEnabled     bool              `json:"search_enabled,omitempty"`
	ToolsEnabled      bool              `json:"tools_enabled,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
	SessionID         string            `json:"session_id,omitempty"`
	AgentID           string            `json:"agent_id,omitempty"`

	// Stream selects server-sent events: one data event per text chunk,
	// then a final "done" event carrying the full result. Streamed
	// responses are never cached.
	Stream bool `json:"stream,omitempty"`
}

func generateHandler(genai *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body generateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
		defer cancel()

		req := client.Request{
			Prompt:    body.Prompt,
			Model:     body.Model,
			SessionID: body.SessionID,
			AgentID:   body.AgentID,
			Config: client.GenerationConfig{
				Temperature:       body.Temperature,
				SystemInstruction: body.SystemInstruction,
				ThinkingBudget:    body.ThinkingBudget,
				SearchEnabled:     body.SearchEnabled,
				ToolsEnabled:      body.ToolsEnabled,
				Extra:             body.Extra,
			},
		}

		if body.Stream {
			streamGenerate(w, ctx, genai, req, logger)
			return
		}

		result, err := genai.Generate(ctx, req)
		if err != nil {
			writeGenerateError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// streamGenerate delivers the response as server-sent events. Errors after
// the first chunk can only be reported in-stream; the HTTP status is already
// committed by then.
func streamGenerate(w http.ResponseWriter, ctx context.Context, genai *client.Client, req client.Request, logger zerolog.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	req.OnChunk = func(chunk string) {
		payload, err := json.Marshal(map[string]string{"text": chunk})
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	result, err := genai.Generate(ctx, req)
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
		flusher.Flush()
		logger.Error().Err(err).Msg("Streaming generation failed")
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", payload)
	flusher.Flush()
}

// writeGenerateError maps orchestration errors onto HTTP status codes.
func writeGenerateError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch client.Classify(err, nil) {
	case client.ClassValidation:
		status = http.StatusBadRequest
	case client.ClassPolicy:
		status = http.StatusUnprocessableEntity
	case client.ClassCancelled:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func usageHandler(ledger *usage.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ledger.ExportSnapshot())
	}
}

func cacheMetricsHandler(genai *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, genai.CacheMetrics())
	}
}

func cacheClearHandler(genai *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		genai.ClearCache()
		logger.Info().Msg("Cache cleared via API")
		w.WriteHeader(http.StatusNoContent)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// geminiProvider calls the Generative Language REST API. Rate-limit headers
// from each response feed the shared quota guard when one is configured.
type geminiProvider struct {
	baseURL string
	apiKey  string
	guard   *quota.Tracker
	http    *http.Client
}

func newGeminiProvider(baseURL, apiKey string, guard *quota.Tracker) *geminiProvider {
	return &geminiProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		guard:   guard,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content       geminiContent `json:"content"`
		FinishReason  string        `json:"finishReason"`
		SafetyRatings []struct {
			Category string `json:"category"`
			Blocked  bool   `json:"blocked"`
		} `json:"safetyRatings"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (p *geminiProvider) Generate(ctx context.Context, model, prompt string, cfg client.GenerationConfig) (*client.Response, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if cfg.SystemInstruction != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: cfg.SystemInstruction}}}
	}
	genCfg := map[string]any{}
	if cfg.Temperature > 0 {
		genCfg["temperature"] = cfg.Temperature
	}
	if cfg.ThinkingBudget > 0 {
		genCfg["thinkingConfig"] = map[string]any{"thinkingBudget": cfg.ThinkingBudget}
	}
	for k, v := range cfg.Extra {
		genCfg[k] = v
	}
	if len(genCfg) > 0 {
		reqBody.GenerationConfig = genCfg
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", p.apiKey)
	}

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if p.guard != nil {
		// Rate-limit headers are absent on most responses; ignore parse errors.
		_ = p.guard.UpdateFromHeaders(ctx, resp.Header)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &client.APIError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    fmt.Sprintf("upstream returned status %d", resp.StatusCode),
		}
	}

	var body geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if body.PromptFeedback.BlockReason != "" {
		return nil, &client.APIError{
			StatusCode: http.StatusOK,
			Class:      client.ClassPolicy,
			Message:    fmt.Sprintf("prompt blocked: %s", body.PromptFeedback.BlockReason),
		}
	}
	if len(body.Candidates) == 0 {
		return nil, fmt.Errorf("upstream returned no candidates")
	}
	candidate := body.Candidates[0]
	if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "RECITATION" {
		return nil, &client.APIError{
			StatusCode: http.StatusOK,
			Class:      client.ClassPolicy,
			Message:    fmt.Sprintf("response blocked: finish reason %s", candidate.FinishReason),
		}
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	return &client.Response{Text: text.String()}, nil
}

func classifyStatus(status int) client.ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return client.ClassTransport
	case status >= 500:
		return client.ClassTransport
	case status == http.StatusBadRequest:
		return client.ClassValidation
	default:
		return client.ClassFatal
	}
}
