package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition <cardKey> <transitionName>",
		Short: "Run a named workflow transition on a card.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return printEnvelope(cmd, m.TransitionCard(context.Background(), args[0], args[1]))
		},
	}
}
