package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/prebuilt"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/tools"
)

var dogWeights = map[string]string{
	"scottish terrier": "Scottish Terriers average 20 lbs",
	"border collie":    "a Border Collies average weight is 37 lbs",
	"toy poodle":       "a toy poodles average weight is 7 lbs",
	"bulldog":          "a bulldogs average weight is 51 lbs",
}

// dogWeightTool answers average_dog_weight actions.
type dogWeightTool struct{}

func (dogWeightTool) Name() string { return "average_dog_weight" }

func (dogWeightTool) Description() string {
	return "e.g. average_dog_weight: Collie\nreturns average weight of a dog when given the breed"
}

func (dogWeightTool) Call(_ context.Context, breed string) (string, error) {
	if w, ok := dogWeights[strings.ToLower(strings.TrimSpace(breed))]; ok {
		return w, nil
	}
	return "An average dog weights 50 lbs", nil
}

func newReactCmd(a *app) *cobra.Command {
	var maxTurns int
	cmd := &cobra.Command{
		Use:   "react [question]",
		Short: "Answer a question with the text ReAct loop (Thought, Action, PAUSE, Observation)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.model()
			if err != nil {
				return err
			}
			agent := prebuilt.NewTextAgent(model, "", []tools.Tool{tools.Calculator{}, dogWeightTool{}}, prebuilt.WithMaxTurns(maxTurns))

			_, err = agent.Query(cmd.Context(), strings.Join(args, " "))
			for _, m := range agent.Messages()[1:] {
				fmt.Fprintf(a.out, "%s: %s\n", m.Role, m.Content)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&maxTurns, "max-turns", prebuilt.DefaultMaxTurns, "maximum model calls")
	return cmd
}
