// Package batch provides parallel execution of many generation requests
// through one client with bounded concurrency.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arcfield/genai-client/pkg/client"
)

// Config holds batch runner configuration.
type Config struct {
	// MaxConcurrency is the maximum number of in-flight generations.
	MaxConcurrency int

	// Timeout applies per request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        60 * time.Second,
	}
}

// Generator is the single-request entry point the runner fans out over.
// Satisfied by *client.Client.
type Generator interface {
	Generate(ctx context.Context, req client.Request) (*client.Result, error)
}

// Result pairs one request's outcome with its position in the input slice.
type Result struct {
	Index  int
	Result *client.Result
	Err    error
}

// Runner fans a slice of requests out over a worker pool. Each orchestrated
// call is independent; one request's failure never blocks another's.
type Runner struct {
	gen    Generator
	config Config
}

// NewRunner creates a batch runner.
func NewRunner(gen Generator, config Config) *Runner {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &Runner{
		gen:    gen,
		config: config,
	}
}

// GenerateAll runs every request and returns one Result per input, in input
// order. Per-request failures are reported in the Result, not returned;
// only full cancellation surfaces as an error.
func (r *Runner) GenerateAll(ctx context.Context, reqs []client.Request) ([]Result, error) {
	start := time.Now()

	out := make([]Result, len(reqs))
	queue := make(chan int, len(reqs))

	for i := range reqs {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for w := 0; w < r.config.MaxConcurrency; w++ {
		wg.Add(1)
		go r.worker(ctx, reqs, queue, out, &wg, w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}

	failed := 0
	for _, res := range out {
		if res.Err != nil {
			failed++
		}
	}
	log.Info().
		Int("requests", len(reqs)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch generation complete")

	return out, nil
}

// worker processes request indexes from the queue.
func (r *Runner) worker(ctx context.Context, reqs []client.Request, queue <-chan int, out []Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for idx := range queue {
		select {
		case <-ctx.Done():
			out[idx] = Result{Index: idx, Err: ctx.Err()}
			continue
		default:
		}

		reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		result, err := r.gen.Generate(reqCtx, reqs[idx])
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("request", idx).
				Msg("Batch request failed")
		}

		out[idx] = Result{Index: idx, Result: result, Err: err}
	}
}
