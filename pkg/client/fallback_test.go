package client

import (
	"reflect"
	"testing"
)

func TestBuildChain(t *testing.T) {
	tests := []struct {
		name      string
		primary   string
		fallbacks []string
		want      []string
	}{
		{
			name:    "no fallbacks",
			primary: "a",
			want:    []string{"a"},
		},
		{
			name:      "order preserved",
			primary:   "a",
			fallbacks: []string{"b", "c"},
			want:      []string{"a", "b", "c"},
		},
		{
			name:      "primary deduplicated even mid-chain",
			primary:   "a",
			fallbacks: []string{"b", "a", "c"},
			want:      []string{"a", "b", "c"},
		},
		{
			name:      "duplicate fallbacks deduplicated",
			primary:   "a",
			fallbacks: []string{"b", "b", "c", "b"},
			want:      []string{"a", "b", "c"},
		},
		{
			name:      "empty entries skipped",
			primary:   "a",
			fallbacks: []string{"", "b"},
			want:      []string{"a", "b"},
		},
		{
			name:      "primary first even if configured later",
			primary:   "c",
			fallbacks: []string{"a", "b", "c"},
			want:      []string{"c", "a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildChain(tt.primary, tt.fallbacks); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildChain(%q, %v) = %v, want %v", tt.primary, tt.fallbacks, got, tt.want)
			}
		})
	}
}
