// Package observability exports graph execution to OpenTelemetry.
//
//	hook, err := observability.NewOTelHook(observability.Config{})
//	if err != nil {
//		return err
//	}
//	tracer := graph.NewTracer()
//	tracer.AddHook(hook)
//	runnable, err := g.Compile(graph.WithTracer(tracer))
//
// Metrics: agentgraph.node.duration, agentgraph.node.executions,
// agentgraph.runs, agentgraph.checkpoints and agentgraph.interrupts.
package observability
