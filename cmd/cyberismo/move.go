package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newMoveCmd() *cobra.Command {
	var parent string
	var index int
	cmd := &cobra.Command{
		Use:   "move <cardKey>",
		Short: "Reparent a card, or (with --index) rebalance its rank among siblings.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("index") {
				return printEnvelope(cmd, m.MoveRankByIndex(context.Background(), args[0], index))
			}
			return printEnvelope(cmd, m.MoveCard(context.Background(), args[0], parent))
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "new parent card key (project root when empty)")
	cmd.Flags().IntVar(&index, "index", 0, "new 0-based rank index among current siblings")
	return cmd
}
