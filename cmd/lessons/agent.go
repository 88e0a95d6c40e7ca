package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/graph"
	"github.com/spf13/cobra"
)

func newAgentCmd(a *app) *cobra.Command {
	var approve bool
	cmd := &cobra.Command{
		Use:   "agent [question]",
		Short: "Run the tool-calling research agent",
		Long: `Run the research agent on a thread. With --approve the run pauses before
every tool call and asks for confirmation. Without a question the thread is
resumed from its latest checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			model, err := a.model()
			if err != nil {
				return err
			}
			agent, err := a.buildGraph("agent", model, approve)
			if err != nil {
				return err
			}

			var res *graph.Result
			if len(args) == 0 {
				res, err = agent.Resume(ctx, a.threadID, a.runOptions()...)
			} else {
				input := graph.State{graph.MessagesKey: []graph.Message{graph.HumanMessage(strings.Join(args, " "))}}
				res, err = agent.Invoke(ctx, input, a.threadID, a.runOptions()...)
			}
			if err != nil {
				return err
			}
			return a.approveLoop(ctx, agent, res)
		},
	}
	cmd.Flags().BoolVar(&approve, "approve", false, "ask before running tools")
	return cmd
}

// approveLoop asks before each pending action and prints the final answer.
func (a *app) approveLoop(ctx context.Context, agent *graph.Runnable, res *graph.Result) error {
	reader := bufio.NewReader(a.in)
	for res.Interrupted() {
		if last, ok := graph.LastMessage(res.State); ok {
			fmt.Fprintln(a.out, formatMessage(last))
		}
		fmt.Fprint(a.out, "proceed? [y/N] ")
		line, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(line), "y") {
			fmt.Fprintf(a.out, "stopped; continue with: lessons agent --thread %s\n", res.ThreadID)
			return nil
		}
		var err error
		if res, err = agent.Resume(ctx, res.ThreadID, a.runOptions()...); err != nil {
			return err
		}
	}

	if last, ok := graph.LastMessage(res.State); ok {
		fmt.Fprintln(a.out, last.Content)
	}
	return nil
}
