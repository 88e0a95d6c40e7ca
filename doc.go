// agentgraph - stateful agent graphs with checkpoints, interrupts and time travel
//
// agentgraph runs LLM agents as graphs of nodes over a shared state. Every step
// is written to a checkpoint store, so a run can pause for a human, resume after
// a restart, or be rewound to any earlier step and replayed on a new branch.
//
// # Quick Start
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/agentgraph/graph"
//		"github.com/smallnest/agentgraph/llms"
//		"github.com/smallnest/agentgraph/prebuilt"
//		"github.com/tmc/langchaingo/llms/openai"
//		"github.com/tmc/langchaingo/tools"
//	)
//
//	func main() {
//		lm, _ := openai.New()
//
//		agent, _ := prebuilt.CreateAgent(
//			llms.NewLangChainModel(lm),
//			[]tools.Tool{tools.Calculator{}},
//			prebuilt.WithApproval(),
//		)
//
//		ctx := context.Background()
//		res, _ := agent.Invoke(ctx, graph.State{
//			graph.MessagesKey: []graph.Message{graph.HumanMessage("What is 25 * 4?")},
//		}, "thread-1")
//
//		// paused before the tool call
//		if res.Interrupted() {
//			res, _ = agent.Resume(ctx, "thread-1")
//		}
//		last, _ := graph.LastMessage(res.State)
//		fmt.Println(last.Content)
//	}
//
// # Core Concepts
//
// A State is a map of field names to values. Nodes return partial updates that
// the graph's MapSchema merges with per-field reducers: overwrite (default),
// append, or merge-by-id for message lists.
//
// A compiled graph (graph.Runnable) is bound to a store.CheckpointStore and
// runs on threads. Each node execution produces an immutable checkpoint holding
// the full state and the next node. Checkpoints form a tree per thread:
// Replay and UpdateState add branches without touching history.
//
// # Package Structure
//
//   - graph: graph builder, executor, checkpoint API, tracing and visualization
//   - store: the checkpoint contract, with memory, file, sqlite, postgres and redis backends
//   - log: the Logger interface and its golog implementation
//   - llms: ChatModel adapters for langchaingo and go-openai
//   - tool: Tavily and Brave web search tools
//   - prebuilt: tool-calling agent, text ReAct agent and essay writer graphs
//   - config: file and environment configuration, store and model construction
//   - observability: OpenTelemetry spans and metrics for graph runs
//
// The cmd/lessons command runs the prebuilt graphs from a terminal and inspects
// thread history. See the examples directory for smaller programs.
package agentgraph // import "github.com/smallnest/agentgraph"
