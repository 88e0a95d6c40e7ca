package main

import (
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/prebuilt"
	"github.com/spf13/cobra"
)

func newEssayCmd(a *app) *cobra.Command {
	var maxRevisions int
	cmd := &cobra.Command{
		Use:   "essay [topic]",
		Short: "Plan, research, write and critique an essay",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.model()
			if err != nil {
				return err
			}
			writer, err := a.buildGraph("essay", model, false)
			if err != nil {
				return err
			}

			input := prebuilt.EssayInput(strings.Join(args, " "), maxRevisions)
			res, err := writer.Invoke(cmd.Context(), input, a.threadID, a.runOptions()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\n%v\n", res.State[prebuilt.DraftKey])
			return nil
		},
	}
	cmd.Flags().IntVar(&maxRevisions, "max-revisions", 2, "number of drafts to write")
	return cmd
}
