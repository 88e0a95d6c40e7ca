// Package graph provides the state-graph execution and checkpointing engine of agentgraph.
//
// A graph is a set of named nodes sharing one State, a map of field names to
// values. A node reads the full state and returns a partial update; the graph's
// MapSchema merges the update field by field with each field's Reducer. Edges
// decide which node runs next, either unconditionally or through a Condition
// whose label selects a target.
//
// # Checkpoints and threads
//
// A compiled graph (Runnable) is bound to a store.CheckpointStore. Every run
// happens on a thread, an independent lineage identified by a caller-chosen id.
// After each node the merged state and the next scheduled node are written as a
// new immutable checkpoint, so a thread can be resumed, inspected, rewound or
// forked at any step:
//
//   - Invoke merges input into the thread's latest state and runs from the entry point
//   - Resume continues from the latest checkpoint
//   - Replay re-enters from any past checkpoint, on the same or another thread
//   - UpdateState records a manual edit as a new checkpoint
//   - GetState, GetCheckpoint and History read checkpoints back
//
// Checkpoints are never rewritten: replays and edits add branches to the
// checkpoint tree of a thread.
//
// # Interrupts
//
// WithInterruptBefore pauses a run before the named nodes and returns
// StatusInterrupted. The next Resume runs the paused node without pausing again,
// which is how human approval steps are built.
//
// # Example
//
//	g := graph.NewStateGraph()
//	schema := graph.NewMapSchema()
//	schema.RegisterField("count", graph.AppendReducer, 0)
//	g.SetSchema(schema)
//
//	inc := func(ctx context.Context, state graph.State) (graph.State, error) {
//		return graph.State{"count": 1}, nil
//	}
//	g.AddNode("Node1", "increment", inc)
//	g.AddNode("Node2", "increment", inc)
//	g.AddEdge("Node1", "Node2")
//	g.AddConditionalEdge("Node2", graph.WhenBool(func(ctx context.Context, state graph.State) bool {
//		return state["count"].(int) < 3
//	}), map[string]string{"true": "Node1", "false": graph.END})
//	g.SetEntryPoint("Node1")
//
//	runnable, err := g.Compile(graph.WithCheckpointer(sqliteStore))
//	if err != nil {
//		return err
//	}
//	result, err := runnable.Invoke(ctx, graph.State{"count": 0}, "thread-1")
//
// # Observability
//
// WithTracer emits spans for runs, nodes, edges, checkpoints and interrupts;
// WithListener delivers per-call step events. Retry and timeout policies wrap
// node functions with WithRetry and WithTimeout.
package graph
