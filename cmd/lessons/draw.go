package main

import (
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/graph"
	"github.com/spf13/cobra"
)

func newDrawCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:       "draw <graph>",
		Short:     "Print a graph as Mermaid or Graphviz DOT",
		Args:      cobra.ExactArgs(1),
		ValidArgs: graphNames,
		RunE: func(_ *cobra.Command, args []string) error {
			r, err := a.buildGraph(args[0], nil, false)
			if err != nil {
				return err
			}
			exporter := graph.GetGraphForRunnable(r)
			switch strings.ToLower(format) {
			case "mermaid":
				fmt.Fprintln(a.out, exporter.DrawMermaid())
			case "dot":
				fmt.Fprintln(a.out, exporter.DrawDOT())
			default:
				return fmt.Errorf("unknown format %q, want mermaid or dot", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "mermaid or dot")
	return cmd
}
