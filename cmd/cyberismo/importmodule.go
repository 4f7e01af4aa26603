package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "import <sourcePath>",
		Short: "Register and copy in a foreign project's resources as a read-only module.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return printEnvelope(cmd, m.ImportModule(context.Background(), args[0], prefix))
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "module prefix (defaults to the source project's own cardKeyPrefix)")
	return cmd
}
