package graph

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrNodeTimeout is returned by nodes wrapped with WithTimeout that overran.
var ErrNodeTimeout = errors.New("node timed out")

// RetryConfig configures retry behavior for nodes
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// RetryableErrors decides if an error should trigger a retry; nil retries all.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (c *RetryConfig) delay(d time.Duration) time.Duration {
	if c.Jitter <= 0 {
		return d
	}
	//nolint:gosec // jitter does not need a secure source
	return d + time.Duration(float64(d)*c.Jitter*(2*rand.Float64()-1))
}

// WithRetry wraps fn so that failed calls are retried with exponential backoff.
// Only the final outcome reaches the executor, so a retried node still produces
// a single checkpoint.
func WithRetry(fn NodeFunc, config *RetryConfig) NodeFunc {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return func(ctx context.Context, state State) (State, error) {
		var lastErr error
		delay := config.InitialDelay

		for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("retry cancelled: %w", err)
			}

			update, err := fn(ctx, state)
			if err == nil {
				return update, nil
			}
			lastErr = err

			if config.RetryableErrors != nil && !config.RetryableErrors(err) {
				return nil, err
			}

			if attempt < config.MaxAttempts {
				select {
				case <-time.After(config.delay(delay)):
					delay = time.Duration(float64(delay) * config.BackoffFactor)
					if config.MaxDelay > 0 {
						delay = min(delay, config.MaxDelay)
					}
				case <-ctx.Done():
					return nil, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
				}
			}
		}

		return nil, fmt.Errorf("max retries (%d) exceeded: %w", config.MaxAttempts, lastErr)
	}
}

// WithTimeout wraps fn so that it fails with ErrNodeTimeout after d.
// fn receives a context canceled at the deadline; its late result is discarded.
func WithTimeout(fn NodeFunc, d time.Duration) NodeFunc {
	return func(ctx context.Context, state State) (State, error) {
		timeoutCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			update State
			err    error
		}
		resultChan := make(chan result, 1)

		go func() {
			defer func() {
				if p := recover(); p != nil {
					resultChan <- result{err: fmt.Errorf("panic: %v", p)}
				}
			}()
			update, err := fn(timeoutCtx, state)
			resultChan <- result{update: update, err: err}
		}()

		select {
		case res := <-resultChan:
			return res.update, res.err
		case <-timeoutCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w after %v", ErrNodeTimeout, d)
		}
	}
}

// AddNodeWithRetry adds a node with retry logic
func (g *StateGraph) AddNodeWithRetry(name, description string, fn NodeFunc, config *RetryConfig) {
	g.AddNode(name, description, WithRetry(fn, config))
}

// AddNodeWithTimeout adds a node with timeout
func (g *StateGraph) AddNodeWithTimeout(name, description string, fn NodeFunc, timeout time.Duration) {
	g.AddNode(name, description, WithTimeout(fn, timeout))
}
