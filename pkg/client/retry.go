package client

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	genaiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	genaiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genai_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	genaiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy holds the configuration for the backoff executor.
// Immutable per call; supplied by the caller or defaulted.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt
	// (total attempts = MaxRetries + 1).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponential delay growth.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor.
	Multiplier float64

	// RetryablePatterns are matched case-insensitively against error
	// messages to decide retryability.
	RetryablePatterns []string
}

// DefaultRetryPolicy returns the standard inference retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryablePatterns: []string{
			"rate limit",
			"429",
			"500",
			"503",
			"connection reset",
			"timeout",
			"no such host",
			"network",
			"fetch failed",
		},
	}
}

// RetryCallback observes each failed attempt before the retry delay.
// Side-effect only (logging/telemetry); it cannot alter control flow.
type RetryCallback func(err error, attempt int)

// Execute runs op with bounded retries and exponential backoff.
//
// Attempts run 1..MaxRetries+1. Success returns immediately. Errors not
// classified as transport propagate without further attempts. Exhaustion
// wraps ErrRetryExhausted around the last error.
func Execute[T any](ctx context.Context, policy RetryPolicy, onRetry RetryCallback, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	var class ErrorClass

	attempts := policy.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().
					Str("error_class", string(class)).
					Int("attempt", attempt+1).
					Msg("Call succeeded after retry")
			}
			return result, nil
		}

		lastErr = err
		class = Classify(err, policy.RetryablePatterns)

		if !shouldRetry(class) {
			return zero, lastErr
		}

		if attempt == attempts-1 {
			break
		}

		delay := withJitter(backoffDelay(policy, attempt))

		genaiRetriesTotal.WithLabelValues(string(class)).Inc()
		genaiRetryBackoffSeconds.WithLabelValues(string(class)).Observe(delay.Seconds())

		if onRetry != nil {
			onRetry(err, attempt+1)
		}

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying call after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return zero, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	genaiRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	log.Warn().
		Str("error_class", string(class)).
		Int("attempts", attempts).
		Msg("Retry attempts exhausted")

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}

// backoffDelay computes the exponential baseline for the given zero-based
// attempt index, capped at MaxDelay. Jitter never applies below this bound.
func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if capped := float64(policy.MaxDelay); delay > capped {
		delay = capped
	}
	return floorToMillis(time.Duration(delay))
}

// withJitter adds up to 30% random extra delay. Strictly additive: the
// result never drops below the exponential baseline, so the lower bound
// across attempts stays non-decreasing while concurrent retriers spread out.
func withJitter(delay time.Duration) time.Duration {
	jitter := time.Duration(float64(delay) * rand.Float64() * 0.3)
	return floorToMillis(delay + jitter)
}

func floorToMillis(d time.Duration) time.Duration {
	return d.Truncate(time.Millisecond)
}
