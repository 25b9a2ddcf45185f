package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key identifies a generation request for caching purposes. It covers the
// exact prompt text plus every generation option that can change the output.
// Two requests with the same Key fields always produce the same fingerprint,
// regardless of how the Key was constructed.
type Key struct {
	// Prompt is the exact prompt text after sanitization.
	Prompt string

	// Model is the model identifier (e.g., "gemini-2.5-flash").
	Model string

	// Temperature is the sampling temperature.
	Temperature float64

	// SystemInstruction is the system prompt, if any.
	SystemInstruction string

	// ThinkingBudget is the extended-reasoning token budget (0 = disabled).
	ThinkingBudget int

	// SearchEnabled indicates whether grounding via search is requested.
	SearchEnabled bool

	// SearchQuery is the explicit search query, if any.
	SearchQuery string

	// ToolsEnabled indicates whether tool calling is requested.
	ToolsEnabled bool

	// Extra holds additional output-affecting options. Serialized in sorted
	// key order so map iteration order never leaks into the fingerprint.
	Extra map[string]string
}

// Fingerprint returns a stable sha256 digest of the key.
// Field order in the serialization is fixed, so construction order of the
// Key (or of its Extra map) cannot affect the result.
func (k Key) Fingerprint() string {
	parts := []string{
		"prompt=" + k.Prompt,
		"model=" + k.Model,
		"temperature=" + strconv.FormatFloat(k.Temperature, 'g', -1, 64),
		"system=" + k.SystemInstruction,
		"thinking_budget=" + strconv.Itoa(k.ThinkingBudget),
		"search=" + strconv.FormatBool(k.SearchEnabled),
		"search_query=" + k.SearchQuery,
		"tools=" + strconv.FormatBool(k.ToolsEnabled),
	}

	if len(k.Extra) > 0 {
		extraKeys := make([]string, 0, len(k.Extra))
		for key := range k.Extra {
			extraKeys = append(extraKeys, key)
		}
		sort.Strings(extraKeys)

		for _, key := range extraKeys {
			parts = append(parts, fmt.Sprintf("extra.%s=%s", key, k.Extra[key]))
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
