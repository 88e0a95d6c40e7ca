package graph_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterGraph is Node1 -> Node2 -> (count < 3 ? Node1 : END), each node adding 1.
func counterGraph(seen *[]int, mu *sync.Mutex) *graph.StateGraph {
	g := graph.NewStateGraph()
	schema := graph.NewMapSchema()
	schema.RegisterField("count", graph.AppendReducer, 0)
	g.SetSchema(schema)

	inc := func(_ context.Context, state graph.State) (graph.State, error) {
		if seen != nil {
			mu.Lock()
			*seen = append(*seen, state["count"].(int))
			mu.Unlock()
		}
		return graph.State{"count": 1}, nil
	}
	g.AddNode("Node1", "increment", inc)
	g.AddNode("Node2", "increment", inc)
	g.AddEdge("Node1", "Node2")
	g.AddConditionalEdge("Node2", graph.WhenBool(func(_ context.Context, state graph.State) bool {
		return state["count"].(int) < 3
	}), map[string]string{"true": "Node1", "false": graph.END})
	g.SetEntryPoint("Node1")
	return g
}

func collect(t *testing.T, r *graph.Runnable, threadID string) []*graph.StateSnapshot {
	t.Helper()
	var out []*graph.StateSnapshot
	for snap, err := range r.History(context.Background(), threadID) {
		require.NoError(t, err)
		out = append(out, snap)
	}
	return out
}

func TestRunnable_CounterScenario(t *testing.T) {
	var (
		seen []int
		mu   sync.Mutex
	)
	r, err := counterGraph(&seen, &mu).Compile()
	require.NoError(t, err)

	res, err := r.Invoke(context.Background(), graph.State{"count": 0}, "counter")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusDone, res.Status)
	assert.Equal(t, graph.END, res.Next)
	assert.Equal(t, 4, res.State["count"])
	assert.Equal(t, []int{0, 1, 2, 3}, seen)

	history := collect(t, r, "counter")
	require.Len(t, history, 5)

	var counts []any
	var writers []string
	for _, snap := range history {
		counts = append(counts, snap.Values["count"])
		writers = append(writers, snap.Writer)
	}
	assert.Equal(t, []any{4, 3, 2, 1, 0}, counts)
	assert.Equal(t, []string{"Node2", "Node1", "Node2", "Node1", graph.START}, writers)

	assert.Equal(t, res.CheckpointID, history[0].CheckpointID)
	assert.Equal(t, store.SourceInput, history[4].Source)
	assert.Empty(t, history[4].ParentID)
	for i := 0; i < 4; i++ {
		assert.Equal(t, history[i+1].CheckpointID, history[i].ParentID)
		assert.Equal(t, store.SourceLoop, history[i].Source)
		assert.Equal(t, 4-i, history[i].Step)
	}
}

func TestRunnable_ReActEndToEnd(t *testing.T) {
	g := graph.NewMessageGraph()
	g.AddNode("llm", "model call", func(_ context.Context, state graph.State) (graph.State, error) {
		return graph.State{graph.MessagesKey: []graph.Message{graph.AIMessage("A toy poodle weighs about 2 to 3 kg.")}}, nil
	})
	g.AddNode("action", "tool calls", func(_ context.Context, state graph.State) (graph.State, error) {
		t.Fatal("no tool call was requested")
		return nil, nil
	})
	g.AddConditionalEdge("llm", graph.When(func(_ context.Context, state graph.State) string {
		if last, ok := graph.LastMessage(state); ok && last.HasToolCalls() {
			return "has_tool_calls"
		}
		return "else"
	}, "has_tool_calls", "else"), map[string]string{"has_tool_calls": "action", "else": graph.END})
	g.AddEdge("action", "llm")
	g.SetEntryPoint("llm")

	r, err := g.Compile()
	require.NoError(t, err)

	res, err := r.Invoke(context.Background(), graph.State{
		graph.MessagesKey: []graph.Message{graph.HumanMessage("How much does a toy poodle weigh?")},
	}, "react")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusDone, res.Status)
	msgs := graph.MessagesFrom(res.State)
	require.Len(t, msgs, 2)
	assert.Equal(t, graph.RoleHuman, msgs[0].Role)
	assert.Equal(t, graph.RoleAI, msgs[1].Role)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEmpty(t, msgs[1].ID)
}

func TestRunnable_InvokeMergesOntoLatest(t *testing.T) {
	g := graph.NewStateGraph()
	g.AddNode("A", "A", func(context.Context, graph.State) (graph.State, error) {
		return graph.State{"visited": true}, nil
	})
	g.AddEdge("A", graph.END)
	g.SetEntryPoint("A")

	r, err := g.Compile()
	require.NoError(t, err)
	ctx := context.Background()

	first, err := r.Invoke(ctx, graph.State{"x": 1}, "t")
	require.NoError(t, err)

	second, err := r.Invoke(ctx, graph.State{"y": 2}, "t")
	require.NoError(t, err)

	assert.Equal(t, float64(1), second.State["x"])
	assert.Equal(t, 2, second.State["y"])

	history := collect(t, r, "t")
	require.Len(t, history, 4)
	input := history[1]
	assert.Equal(t, store.SourceInput, input.Source)
	assert.Equal(t, first.CheckpointID, input.ParentID)
	assert.Equal(t, "A", input.Next)
}

func TestRunnable_Resume(t *testing.T) {
	t.Run("No checkpoint", func(t *testing.T) {
		r, err := counterGraph(nil, nil).Compile()
		require.NoError(t, err)

		_, err = r.Resume(context.Background(), "missing")
		assert.ErrorIs(t, err, graph.ErrNoCheckpoint)
	})

	t.Run("Done thread writes nothing", func(t *testing.T) {
		s := memory.NewMemoryCheckpointStore()
		r, err := counterGraph(nil, nil).Compile(graph.WithCheckpointer(s))
		require.NoError(t, err)
		ctx := context.Background()

		done, err := r.Invoke(ctx, graph.State{"count": 0}, "t")
		require.NoError(t, err)

		again, err := r.Resume(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, graph.StatusDone, again.Status)
		assert.Equal(t, done.CheckpointID, again.CheckpointID)
		assert.Equal(t, 4, again.State["count"])

		all, err := store.Collect(s.History(ctx, "t"))
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("Max steps then resume", func(t *testing.T) {
		r, err := counterGraph(nil, nil).Compile()
		require.NoError(t, err)
		ctx := context.Background()

		res, err := r.Invoke(ctx, graph.State{"count": 0}, "t", graph.WithMaxSteps(1))
		require.NoError(t, err)
		assert.Equal(t, graph.StatusReady, res.Status)
		assert.Equal(t, "Node2", res.Next)
		assert.Equal(t, 1, res.State["count"])

		res, err = r.Resume(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, graph.StatusDone, res.Status)
		assert.Equal(t, 4, res.State["count"])
	})
}

func TestRunnable_NodeErrorKeepsLastGoodCheckpoint(t *testing.T) {
	boom := errors.New("model unavailable")
	failures := 1

	g := graph.NewStateGraph()
	g.AddNode("A", "A", func(context.Context, graph.State) (graph.State, error) {
		return graph.State{"a": "done"}, nil
	})
	g.AddNode("B", "B", func(context.Context, graph.State) (graph.State, error) {
		if failures > 0 {
			failures--
			return nil, boom
		}
		return graph.State{"b": "done"}, nil
	})
	g.AddEdge("A", "B")
	g.AddEdge("B", graph.END)
	g.SetEntryPoint("A")

	r, err := g.Compile()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Invoke(ctx, graph.State{}, "t")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "node B")

	snap, err := r.GetState(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "A", snap.Writer)
	assert.Equal(t, "B", snap.Next)

	res, err := r.Resume(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)
	assert.Equal(t, "done", res.State["b"])
}

func TestRunnable_Failures(t *testing.T) {
	t.Run("Panic becomes error", func(t *testing.T) {
		g := graph.NewStateGraph()
		g.AddNode("A", "A", func(context.Context, graph.State) (graph.State, error) {
			panic("bad node")
		})
		g.AddEdge("A", graph.END)
		g.SetEntryPoint("A")

		r, err := g.Compile()
		require.NoError(t, err)

		_, err = r.Invoke(context.Background(), graph.State{}, "t")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic: bad node")
	})

	t.Run("Unknown label", func(t *testing.T) {
		g := graph.NewStateGraph()
		g.AddNode("A", "A", passthroughNode)
		g.AddConditionalEdge("A", graph.When(func(context.Context, graph.State) string { return "weird" }),
			map[string]string{"ok": graph.END})
		g.SetEntryPoint("A")

		r, err := g.Compile()
		require.NoError(t, err)

		_, err = r.Invoke(context.Background(), graph.State{}, "t")
		var labelErr *graph.UnknownLabelError
		require.True(t, errors.As(err, &labelErr))
		assert.Equal(t, "A", labelErr.Node)
		assert.Equal(t, "weird", labelErr.Label)
	})

	t.Run("Schema violation persists nothing", func(t *testing.T) {
		g := graph.NewStateGraph()
		schema := graph.NewMapSchema()
		schema.RegisterReducer("items", graph.MergeByIDReducer)
		g.SetSchema(schema)
		g.AddNode("A", "A", func(context.Context, graph.State) (graph.State, error) {
			return graph.State{"items": []int{1}}, nil
		})
		g.AddEdge("A", graph.END)
		g.SetEntryPoint("A")

		r, err := g.Compile()
		require.NoError(t, err)
		ctx := context.Background()

		_, err = r.Invoke(ctx, graph.State{}, "t")
		assert.ErrorIs(t, err, graph.ErrSchemaViolation)

		history := collect(t, r, "t")
		require.Len(t, history, 1)
		assert.Equal(t, graph.START, history[0].Writer)
	})

	t.Run("Recursion limit", func(t *testing.T) {
		g := graph.NewStateGraph()
		g.AddNode("loop", "loop", passthroughNode)
		g.AddConditionalEdge("loop", graph.When(func(context.Context, graph.State) string { return "again" }, "again"),
			map[string]string{"again": "loop"})
		g.SetEntryPoint("loop")

		r, err := g.Compile(graph.WithRecursionLimit(5))
		require.NoError(t, err)

		_, err = r.Invoke(context.Background(), graph.State{}, "t")
		assert.ErrorIs(t, err, graph.ErrRecursionLimit)
		assert.Len(t, collect(t, r, "t"), 6)
	})

	t.Run("Canceled context", func(t *testing.T) {
		r, err := counterGraph(nil, nil).Compile()
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = r.Invoke(ctx, graph.State{"count": 0}, "t")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func passthroughNode(context.Context, graph.State) (graph.State, error) { return nil, nil }

func TestRunnable_NodesCannotMutatePriorState(t *testing.T) {
	g := graph.NewStateGraph()
	g.AddNode("A", "A", func(_ context.Context, state graph.State) (graph.State, error) {
		state["leak"] = true
		return graph.State{"a": 1}, nil
	})
	g.AddEdge("A", graph.END)
	g.SetEntryPoint("A")

	r, err := g.Compile()
	require.NoError(t, err)

	res, err := r.Invoke(context.Background(), graph.State{}, "t")
	require.NoError(t, err)
	assert.NotContains(t, res.State, "leak")
}

func TestRunnable_ConcurrentThreads(t *testing.T) {
	r, err := counterGraph(nil, nil).Compile()
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Invoke(ctx, graph.State{"count": 0}, fmt.Sprintf("thread-%d", i))
			if err == nil && res.State["count"] != 4 {
				err = fmt.Errorf("thread-%d ended with %v", i, res.State["count"])
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	for i := range 10 {
		assert.Len(t, collect(t, r, fmt.Sprintf("thread-%d", i)), 5)
	}
}

func TestRunnable_SameThreadIsSerialized(t *testing.T) {
	r, err := counterGraph(nil, nil).Compile()
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Invoke(ctx, graph.State{"count": 0}, "shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The first call writes 5 checkpoints and ends at 4. Every later call starts
	// above 3 and stops after one pass: 3 checkpoints and +2 each.
	history := collect(t, r, "shared")
	assert.Len(t, history, 17)
	assert.Equal(t, 12, history[0].Values["count"])

	seqs := make(map[int64]bool)
	for _, snap := range history {
		assert.False(t, seqs[snap.Seq])
		seqs[snap.Seq] = true
	}
}

func TestRunnable_Listeners(t *testing.T) {
	g := graph.NewStateGraph()
	g.AddNode("A", "A", func(context.Context, graph.State) (graph.State, error) { return graph.State{"a": 1}, nil })
	g.AddNode("B", "B", func(context.Context, graph.State) (graph.State, error) { return graph.State{"b": 2}, nil })
	g.AddEdge("A", "B")
	g.AddEdge("B", graph.END)
	g.SetEntryPoint("A")

	var buf bytes.Buffer
	r, err := g.Compile(graph.WithLogger(&log.NoOpLogger{}))
	require.NoError(t, err)

	ch := graph.NewChannelListener(16)
	panicky := graph.StepListenerFunc(func(context.Context, graph.StepEvent) { panic("listener") })
	logging := graph.NewLoggingListener(log.NewCustomLogger(&buf, log.LogLevelDebug))

	res, err := r.Invoke(context.Background(), graph.State{}, "t",
		graph.WithListener(ch), graph.WithListener(panicky), graph.WithListener(logging))
	require.NoError(t, err)

	var got []string
	for len(ch.Events()) > 0 {
		e := <-ch.Events()
		got = append(got, fmt.Sprintf("%s:%s", e.Event, e.NodeName))
		assert.Equal(t, "t", e.ThreadID)
		assert.False(t, e.Timestamp.IsZero())
		if e.Event == graph.NodeEventComplete && e.NodeName == "B" {
			assert.Equal(t, graph.State{"b": 2}, e.Update)
			assert.Equal(t, graph.END, e.Next)
			assert.Equal(t, res.CheckpointID, e.CheckpointID)
		}
	}
	assert.Equal(t, []string{"start:A", "complete:A", "start:B", "complete:B", "chain_end:"}, got)
	assert.Contains(t, buf.String(), "A completed")
	assert.Contains(t, buf.String(), "finished at checkpoint "+res.CheckpointID)
}
