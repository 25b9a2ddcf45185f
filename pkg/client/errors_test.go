package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	patterns := DefaultRetryPolicy().RetryablePatterns

	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{
			name: "rate limit message",
			err:  errors.New("Rate Limit exceeded, slow down"),
			want: ClassTransport,
		},
		{
			name: "http 429",
			err:  errors.New("upstream returned 429"),
			want: ClassTransport,
		},
		{
			name: "http 503",
			err:  errors.New("503 service unavailable"),
			want: ClassTransport,
		},
		{
			name: "connection reset",
			err:  errors.New("read tcp: connection reset by peer"),
			want: ClassTransport,
		},
		{
			name: "timeout",
			err:  errors.New("request timeout after 30s"),
			want: ClassTransport,
		},
		{
			name: "dns failure",
			err:  errors.New("dial tcp: lookup api.example.com: no such host"),
			want: ClassTransport,
		},
		{
			name: "fetch failed",
			err:  errors.New("fetch failed"),
			want: ClassTransport,
		},
		{
			name: "safety block",
			err:  errors.New("response blocked by SAFETY settings"),
			want: ClassPolicy,
		},
		{
			name: "regional restriction",
			err:  errors.New("user location is not supported for the API use"),
			want: ClassPolicy,
		},
		{
			name: "prohibited content",
			err:  errors.New("request rejected: prohibited content"),
			want: ClassPolicy,
		},
		{
			name: "context cancelled",
			err:  context.Canceled,
			want: ClassCancelled,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: ClassCancelled,
		},
		{
			name: "wrapped cancellation",
			err:  fmt.Errorf("%w: gave up", ErrContextCancelled),
			want: ClassCancelled,
		},
		{
			name: "validation error",
			err:  &ValidationError{Problems: []string{"too short"}},
			want: ClassValidation,
		},
		{
			name: "pre-tagged api error keeps its class",
			err:  &APIError{StatusCode: 451, Class: ClassPolicy, Message: "regional block"},
			want: ClassPolicy,
		},
		{
			name: "unknown error is fatal",
			err:  errors.New("invalid api key"),
			want: ClassFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err, patterns); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_CaseInsensitivePatterns(t *testing.T) {
	patterns := []string{"RATE LIMIT"}
	if got := Classify(errors.New("rate limit hit"), patterns); got != ClassTransport {
		t.Errorf("Classify = %s, want %s (patterns match case-insensitively)", got, ClassTransport)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ClassTransport, true},
		{ClassPolicy, false},
		{ClassValidation, false},
		{ClassCancelled, false},
		{ClassFatal, false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%s) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := &APIError{StatusCode: 500, Class: ClassTransport, Message: "boom", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("APIError should unwrap to its inner error")
	}

	var apiErr *APIError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &apiErr) {
		t.Error("errors.As should find the APIError through wrapping")
	}
}

func TestExhaustionError(t *testing.T) {
	inner := errors.New("last failure")
	err := &ExhaustionError{Attempts: 3, LastErr: inner}

	if !errors.Is(err, inner) {
		t.Error("ExhaustionError should unwrap to the last error")
	}

	var exhausted *ExhaustionError
	if !errors.As(fmt.Errorf("call failed: %w", err), &exhausted) {
		t.Fatal("errors.As should find the ExhaustionError")
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
}
