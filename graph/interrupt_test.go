package graph_test

import (
	"context"
	"testing"

	"github.com/smallnest/agentgraph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planActionGraph(actionCalls *int) *graph.StateGraph {
	g := graph.NewStateGraph()
	g.AddNode("plan", "plan", func(context.Context, graph.State) (graph.State, error) {
		return graph.State{"plan": "search"}, nil
	})
	g.AddNode("action", "act", func(context.Context, graph.State) (graph.State, error) {
		*actionCalls++
		return graph.State{"result": "found"}, nil
	})
	g.AddEdge("plan", "action")
	g.AddEdge("action", graph.END)
	g.SetEntryPoint("plan")
	return g
}

func TestGraphInterrupt(t *testing.T) {
	calls := 0
	r, err := planActionGraph(&calls).Compile(graph.WithInterruptBefore("action"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := r.Invoke(ctx, graph.State{"input": "q"}, "t")
	require.NoError(t, err)
	assert.True(t, res.Interrupted())
	assert.Equal(t, "action", res.Next)
	assert.Equal(t, "search", res.State["plan"])
	assert.Equal(t, 0, calls)

	snap, err := r.GetState(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, res.CheckpointID, snap.CheckpointID)
	assert.Equal(t, "action", snap.Next)

	res, err = r.Resume(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)
	assert.Equal(t, "found", res.State["result"])
	assert.Equal(t, 1, calls)

	res, err = r.Resume(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)
	assert.Equal(t, 1, calls)
}

func TestGraphInterrupt_EntryNode(t *testing.T) {
	calls := 0
	r, err := planActionGraph(&calls).Compile(graph.WithInterruptBefore("plan"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := r.Invoke(ctx, graph.State{}, "t")
	require.NoError(t, err)
	assert.True(t, res.Interrupted())
	assert.Equal(t, "plan", res.Next)
	assert.NotContains(t, res.State, "plan")
	assert.Len(t, collect(t, r, "t"), 1)

	res, err = r.Resume(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)
	assert.Equal(t, 1, calls)
}

func TestGraphInterrupt_PausesAgainOnNextArrival(t *testing.T) {
	r, err := counterGraph(nil, nil).Compile(graph.WithInterruptBefore("Node1"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := r.Invoke(ctx, graph.State{"count": 0}, "t")
	require.NoError(t, err)
	assert.True(t, res.Interrupted())
	assert.Equal(t, 0, res.State["count"])

	res, err = r.Resume(ctx, "t")
	require.NoError(t, err)
	assert.True(t, res.Interrupted())
	assert.Equal(t, "Node1", res.Next)
	assert.Equal(t, 2, res.State["count"])

	res, err = r.Resume(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)
	assert.Equal(t, 4, res.State["count"])
}

func TestGraphInterrupt_FileStore(t *testing.T) {
	s, err := graph.NewFileCheckpointStore(t.TempDir())
	require.NoError(t, err)

	r, err := counterGraph(nil, nil).Compile(graph.WithCheckpointer(s), graph.WithInterruptBefore("Node2"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := r.Invoke(ctx, graph.State{"count": 0}, "t")
	require.NoError(t, err)
	assert.True(t, res.Interrupted())

	// a second runnable over the same store picks the thread up
	r2, err := counterGraph(nil, nil).Compile(graph.WithCheckpointer(s))
	require.NoError(t, err)

	res, err = r2.Resume(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)
	assert.Equal(t, 4, res.State["count"])
}
