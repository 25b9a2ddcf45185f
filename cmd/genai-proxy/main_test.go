package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/arcfield/genai-client/pkg/cache"
	"github.com/arcfield/genai-client/pkg/client"
	"github.com/arcfield/genai-client/pkg/usage"
)

// newUpstream fakes the generative REST API with a fixed candidate text.
func newUpstream(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
}

func newTestClient(t *testing.T, upstreamURL string) (*client.Client, *usage.Ledger) {
	t.Helper()

	logger := zerolog.Nop()
	store, err := cache.New(cache.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	ledger, err := usage.New(usage.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}

	provider := newGeminiProvider(upstreamURL, "test-key", nil)
	genai, err := client.New(client.DefaultConfig(provider, "gemini-2.5-flash", store, ledger))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return genai, ledger
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpointWithoutRedis(t *testing.T) {
	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	readyHandler(nil)(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}
}

func TestGenerateHandler(t *testing.T) {
	upstream := newUpstream(t, "handler answer")
	defer upstream.Close()

	genai, ledger := newTestClient(t, upstream.URL)
	handler := generateHandler(genai, zerolog.Nop())

	req := httptest.NewRequest("POST", "/v1/generate",
		strings.NewReader(`{"prompt": "hello", "temperature": 0.4, "session_id": "s1"}`))
	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}

	var result client.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Text != "handler answer" {
		t.Errorf("Text = %q, want %q", result.Text, "handler answer")
	}
	if result.ModelUsed != "gemini-2.5-flash" {
		t.Errorf("ModelUsed = %q, want gemini-2.5-flash", result.ModelUsed)
	}

	if len(ledger.Records()) != 1 {
		t.Errorf("ledger records = %d, want 1", len(ledger.Records()))
	}
}

func TestGenerateHandlerStreaming(t *testing.T) {
	upstream := newUpstream(t, "streamed answer")
	defer upstream.Close()

	genai, _ := newTestClient(t, upstream.URL)
	handler := generateHandler(genai, zerolog.Nop())

	req := httptest.NewRequest("POST", "/v1/generate",
		strings.NewReader(`{"prompt": "hello", "stream": true}`))
	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// The REST provider delivers the full text as a single chunk.
	if !strings.Contains(bodyStr, `data: {"text":"streamed answer"}`) {
		t.Errorf("Expected chunk event in stream, got:\n%s", bodyStr)
	}
	if !strings.Contains(bodyStr, "event: done") {
		t.Errorf("Expected done event in stream, got:\n%s", bodyStr)
	}

	var result client.Result
	for _, line := range strings.Split(bodyStr, "\n") {
		if after, ok := strings.CutPrefix(line, "data: "); ok && strings.Contains(after, "model_used") {
			if err := json.Unmarshal([]byte(after), &result); err != nil {
				t.Fatalf("Failed to decode done payload: %v", err)
			}
		}
	}
	if result.Text != "streamed answer" {
		t.Errorf("done Text = %q, want %q", result.Text, "streamed answer")
	}
	if result.Cached {
		t.Error("streamed response must not be marked cached")
	}
}

func TestGenerateHandlerStreamingError(t *testing.T) {
	upstream := newUpstream(t, "unused")
	defer upstream.Close()

	genai, _ := newTestClient(t, upstream.URL)
	handler := generateHandler(genai, zerolog.Nop())

	// Validation failures surface before the stream starts.
	req := httptest.NewRequest("POST", "/v1/generate",
		strings.NewReader(`{"prompt": "", "stream": true}`))
	w := httptest.NewRecorder()

	handler(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "event: error") {
		t.Errorf("Expected error event in stream, got:\n%s", body)
	}
}

func TestGenerateHandlerBadRequests(t *testing.T) {
	upstream := newUpstream(t, "unused")
	defer upstream.Close()

	genai, _ := newTestClient(t, upstream.URL)
	handler := generateHandler(genai, zerolog.Nop())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"prompt": `},
		{"empty prompt", `{"prompt": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/generate", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler(w, req)

			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
			}
		})
	}
}

func TestUsageHandler(t *testing.T) {
	upstream := newUpstream(t, "metered")
	defer upstream.Close()

	genai, ledger := newTestClient(t, upstream.URL)
	if _, err := genai.Generate(context.Background(), client.Request{Prompt: "meter me"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/v1/usage", nil)
	w := httptest.NewRecorder()

	usageHandler(ledger)(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var export usage.Export
	if err := json.NewDecoder(resp.Body).Decode(&export); err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}
	if export.Metrics.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", export.Metrics.TotalRequests)
	}
	if len(export.Records) != 1 {
		t.Errorf("Records = %d, want 1", len(export.Records))
	}
}

func TestCacheEndpoints(t *testing.T) {
	upstream := newUpstream(t, "cache me")
	defer upstream.Close()

	genai, _ := newTestClient(t, upstream.URL)
	if _, err := genai.Generate(context.Background(), client.Request{Prompt: "cache me"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	w := httptest.NewRecorder()
	cacheMetricsHandler(genai)(w, httptest.NewRequest("GET", "/cache/metrics", nil))

	var metrics cache.Metrics
	if err := json.NewDecoder(w.Result().Body).Decode(&metrics); err != nil {
		t.Fatalf("Failed to decode metrics: %v", err)
	}
	if metrics.Entries != 1 {
		t.Errorf("Entries = %d, want 1", metrics.Entries)
	}

	w = httptest.NewRecorder()
	cacheClearHandler(genai, zerolog.Nop())(w, httptest.NewRequest("POST", "/cache/clear", nil))
	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Result().StatusCode)
	}
	if m := genai.CacheMetrics(); m.Entries != 0 {
		t.Errorf("Entries after clear = %d, want 0", m.Entries)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	upstream := newUpstream(t, "observed")
	defer upstream.Close()

	// Generating once ensures the client metric vectors have samples.
	genai, _ := newTestClient(t, upstream.URL)
	if _, err := genai.Generate(context.Background(), client.Request{Prompt: "observe me"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(bodyStr, "genai_requests_total") {
		t.Error("Expected metrics output to contain genai_requests_total")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   client.ErrorClass
	}{
		{http.StatusTooManyRequests, client.ClassTransport},
		{http.StatusInternalServerError, client.ClassTransport},
		{http.StatusServiceUnavailable, client.ClassTransport},
		{http.StatusBadRequest, client.ClassValidation},
		{http.StatusForbidden, client.ClassFatal},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
