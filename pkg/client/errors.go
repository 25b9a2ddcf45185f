package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts for one model
	// are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry delay or an in-flight call. Never retried.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass classifies a failure at the transport boundary. Classification
// happens exactly once per failure, in Classify; no other layer re-matches
// message text.
type ErrorClass string

const (
	// ClassValidation marks input that failed length/shape constraints.
	// Surfaced immediately, no model attempted.
	ClassValidation ErrorClass = "validation"

	// ClassTransport marks transient transport failures (rate limit, 5xx,
	// timeout, DNS, network). Retried per policy, then escalated to the
	// fallback chain.
	ClassTransport ErrorClass = "transport"

	// ClassPolicy marks safety blocks and regional restrictions. Aborts
	// the whole fallback chain, never retried.
	ClassPolicy ErrorClass = "policy"

	// ClassCancelled marks context cancellation. Never retried.
	ClassCancelled ErrorClass = "cancelled"

	// ClassFatal marks everything else: not transient, but also not a
	// chain-wide abort. The next model in the chain is still tried.
	ClassFatal ErrorClass = "fatal"
)

// APIError represents an upstream failure with its classification attached.
// Providers may return it directly to pre-classify errors; anything else is
// classified from its message text.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ValidationError reports input rejected before any cache or network work.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid prompt: " + strings.Join(e.Problems, "; ")
}

// ExhaustionError reports that every model in the fallback chain failed
// after its retries. Attempts counts the models tried; LastErr is the final
// underlying failure.
type ExhaustionError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("all %d models in fallback chain failed: %v", e.Attempts, e.LastErr)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ExhaustionError) Unwrap() error {
	return e.LastErr
}

// fatalPolicyPatterns identify upstream policy/safety/regional blocks.
// These are a hard stop for the whole chain, not per-model failures.
var fatalPolicyPatterns = []string{
	"safety",
	"blocked",
	"policy violation",
	"prohibited content",
	"recitation",
	"user location is not supported",
	"region not supported",
}

// Classify tags an error with its class. Pre-tagged APIErrors keep their
// class; otherwise the message is matched case-insensitively against the
// policy patterns and then the supplied retryable patterns.
func Classify(err error, retryablePatterns []string) ErrorClass {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrContextCancelled) {
		return ClassCancelled
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ClassValidation
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Class != "" {
		return apiErr.Class
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range fatalPolicyPatterns {
		if strings.Contains(msg, pattern) {
			return ClassPolicy
		}
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, strings.ToLower(pattern)) {
			return ClassTransport
		}
	}

	return ClassFatal
}

// shouldRetry reports whether the backoff executor may try again.
func shouldRetry(class ErrorClass) bool {
	return class == ClassTransport
}
