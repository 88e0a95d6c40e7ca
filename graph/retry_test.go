package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
		Jitter:        0.25,
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("Succeeds after failures", func(t *testing.T) {
		attempts := 0
		fn := WithRetry(func(context.Context, State) (State, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("flaky")
			}
			return State{"ok": true}, nil
		}, fastRetry())

		update, err := fn(context.Background(), State{})
		require.NoError(t, err)
		assert.Equal(t, State{"ok": true}, update)
		assert.Equal(t, 3, attempts)
	})

	t.Run("Gives up after max attempts", func(t *testing.T) {
		attempts := 0
		boom := errors.New("down")
		fn := WithRetry(func(context.Context, State) (State, error) {
			attempts++
			return nil, boom
		}, fastRetry())

		_, err := fn(context.Background(), State{})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "max retries (3) exceeded")
		assert.Equal(t, 3, attempts)
	})

	t.Run("Non-retryable error stops immediately", func(t *testing.T) {
		attempts := 0
		permanent := errors.New("bad request")
		cfg := fastRetry()
		cfg.RetryableErrors = func(err error) bool { return !errors.Is(err, permanent) }

		fn := WithRetry(func(context.Context, State) (State, error) {
			attempts++
			return nil, permanent
		}, cfg)

		_, err := fn(context.Background(), State{})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, attempts)
	})

	t.Run("Canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fn := WithRetry(func(context.Context, State) (State, error) {
			return nil, errors.New("unreachable")
		}, nil)

		_, err := fn(ctx, State{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWithTimeout(t *testing.T) {
	t.Run("Fast node", func(t *testing.T) {
		fn := WithTimeout(func(context.Context, State) (State, error) {
			return State{"done": true}, nil
		}, time.Second)

		update, err := fn(context.Background(), State{})
		require.NoError(t, err)
		assert.Equal(t, true, update["done"])
	})

	t.Run("Slow node", func(t *testing.T) {
		fn := WithTimeout(func(ctx context.Context, _ State) (State, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, 10*time.Millisecond)

		_, err := fn(context.Background(), State{})
		assert.ErrorIs(t, err, ErrNodeTimeout)
	})

	t.Run("Panic", func(t *testing.T) {
		fn := WithTimeout(func(context.Context, State) (State, error) {
			panic("oops")
		}, time.Second)

		_, err := fn(context.Background(), State{})
		assert.ErrorContains(t, err, "panic: oops")
	})
}

func TestAddNodeWithRetry_SingleCheckpoint(t *testing.T) {
	attempts := 0
	g := NewStateGraph()
	g.AddNodeWithRetry("flaky", "flaky", func(context.Context, State) (State, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return State{"ok": true}, nil
	}, fastRetry())
	g.AddNodeWithTimeout("bounded", "bounded", func(context.Context, State) (State, error) {
		return State{"bounded": true}, nil
	}, time.Second)
	g.AddEdge("flaky", "bounded")
	g.AddEdge("bounded", END)
	g.SetEntryPoint("flaky")

	r, err := g.Compile()
	require.NoError(t, err)
	ctx := context.Background()

	res, err := r.Invoke(ctx, State{}, "t")
	require.NoError(t, err)
	assert.Equal(t, true, res.State["ok"])
	assert.Equal(t, true, res.State["bounded"])
	assert.Equal(t, 2, attempts)

	count := 0
	for _, err := range r.History(ctx, "t") {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 3, count)
}
