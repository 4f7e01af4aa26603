package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <newPrefix>",
		Short: "Rename the project's card-key prefix project-wide.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return printEnvelope(cmd, m.RenameProject(context.Background(), args[0]))
		},
	}
}
