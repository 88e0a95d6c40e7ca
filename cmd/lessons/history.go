package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/smallnest/agentgraph/graph"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var graphName string
	var values bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the checkpoints of a thread, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.buildGraph(graphName, nil, false)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tSTEP\tCHECKPOINT\tPARENT\tSOURCE\tWRITER\tNEXT")
			n := 0
			for snap, err := range r.History(cmd.Context(), a.threadID) {
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
					snap.Seq, snap.Step, snap.CheckpointID, orDash(snap.ParentID), snap.Source, snap.Writer, snap.Next)
				if values {
					fmt.Fprintf(w, "\t\t%s\n", summarize(snap.Values))
				}
				n++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintf(a.out, "thread %s has no checkpoints\n", a.threadID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&graphName, "graph", "g", "agent", "graph that wrote the thread (agent or essay)")
	cmd.Flags().BoolVar(&values, "values", false, "print the state of each checkpoint")
	return cmd
}

func newReplayCmd(a *app) *cobra.Command {
	var graphName, fork string
	var approve bool
	var update string
	cmd := &cobra.Command{
		Use:   "replay <checkpoint-id>",
		Short: "Continue execution from a past checkpoint",
		Long: `Continue from a past checkpoint. Nothing after it is altered: new
checkpoints branch off it. --fork copies the checkpoint into another thread
first. --update sets a state field (key=value) before replaying.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			model, err := a.model()
			if err != nil {
				return err
			}
			r, err := a.buildGraph(graphName, model, approve)
			if err != nil {
				return err
			}

			from := args[0]
			if update != "" {
				key, value, ok := strings.Cut(update, "=")
				if !ok {
					return fmt.Errorf("--update wants key=value, got %q", update)
				}
				if from, err = r.UpdateState(ctx, from, graph.State{key: value}, ""); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "updated %s, new checkpoint %s\n", key, from)
			}

			opts := a.runOptions()
			if fork != "" {
				opts = append(opts, graph.WithThread(fork))
			}
			res, err := r.Replay(ctx, from, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "thread %s: %s at checkpoint %s\n", res.ThreadID, res.Status, res.CheckpointID)
			if graphName == "agent" {
				return a.approveLoop(ctx, r, res)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&graphName, "graph", "g", "agent", "graph that wrote the checkpoint (agent or essay)")
	cmd.Flags().StringVar(&fork, "fork", "", "thread to fork into")
	cmd.Flags().BoolVar(&approve, "approve", false, "ask before running tools")
	cmd.Flags().StringVar(&update, "update", "", "state field to set first, key=value")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
