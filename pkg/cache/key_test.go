package cache

import (
	"testing"
)

func TestKey_Fingerprint_Deterministic(t *testing.T) {
	a := Key{
		Prompt:            "hello world",
		Model:             "gemini-2.5-flash",
		Temperature:       0.7,
		SystemInstruction: "be brief",
		ThinkingBudget:    1024,
		SearchEnabled:     true,
		SearchQuery:       "weather",
		ToolsEnabled:      false,
		Extra:             map[string]string{"top_p": "0.9", "candidates": "1"},
	}

	// Same fields, different construction order (struct literal order and
	// map insertion order differ).
	b := Key{
		Extra:             map[string]string{"candidates": "1", "top_p": "0.9"},
		ToolsEnabled:      false,
		SearchQuery:       "weather",
		SearchEnabled:     true,
		ThinkingBudget:    1024,
		SystemInstruction: "be brief",
		Temperature:       0.7,
		Model:             "gemini-2.5-flash",
		Prompt:            "hello world",
	}

	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("Fingerprints differ for identical keys: %s != %s",
			a.Fingerprint(), b.Fingerprint())
	}
}

func TestKey_Fingerprint_FieldSensitivity(t *testing.T) {
	base := Key{
		Prompt:      "hello",
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
	}

	tests := []struct {
		name   string
		mutate func(k Key) Key
	}{
		{
			name: "prompt change",
			mutate: func(k Key) Key {
				k.Prompt = "hello!"
				return k
			},
		},
		{
			name: "model change",
			mutate: func(k Key) Key {
				k.Model = "gemini-2.5-pro"
				return k
			},
		},
		{
			name: "temperature change",
			mutate: func(k Key) Key {
				k.Temperature = 0.8
				return k
			},
		},
		{
			name: "system instruction change",
			mutate: func(k Key) Key {
				k.SystemInstruction = "be terse"
				return k
			},
		},
		{
			name: "thinking budget change",
			mutate: func(k Key) Key {
				k.ThinkingBudget = 512
				return k
			},
		},
		{
			name: "search flag change",
			mutate: func(k Key) Key {
				k.SearchEnabled = true
				return k
			},
		},
		{
			name: "search query change",
			mutate: func(k Key) Key {
				k.SearchQuery = "news"
				return k
			},
		},
		{
			name: "tools flag change",
			mutate: func(k Key) Key {
				k.ToolsEnabled = true
				return k
			},
		},
		{
			name: "extra option change",
			mutate: func(k Key) Key {
				k.Extra = map[string]string{"top_p": "0.5"}
				return k
			},
		},
	}

	baseFP := base.Fingerprint()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mutate(base).Fingerprint(); got == baseFP {
				t.Errorf("Fingerprint unchanged after %s", tt.name)
			}
		})
	}
}

func TestKey_Fingerprint_NoFieldCollision(t *testing.T) {
	// Adjacent fields must not be able to shift content into each other.
	a := Key{Prompt: "ab", Model: "c"}
	b := Key{Prompt: "a", Model: "bc"}

	if a.Fingerprint() == b.Fingerprint() {
		t.Error("Fingerprint collided across field boundaries")
	}
}
