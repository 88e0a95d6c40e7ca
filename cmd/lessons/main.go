// Command lessons runs the agent graphs of the course: a text ReAct agent, a
// tool-calling research agent with optional human approval, and an essay
// writer. Threads are checkpointed in the configured store, so their history
// can be listed, replayed and forked.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
