package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

func newRemoveCmd() *cobra.Command {
	var file string
	var module string
	cmd := &cobra.Command{
		Use:   "remove <kind> <identifier>",
		Short: "Delete a local resource, a content file inside one, or (with --module) a module.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			if module != "" {
				return printEnvelope(cmd, m.RemoveModule(context.Background(), module))
			}
			if len(args) != 2 {
				return cmd.Help()
			}
			return printEnvelope(cmd, m.Remove(context.Background(), resource.Kind(args[0]), args[1], file))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "content file name to remove from a folder resource")
	cmd.Flags().StringVar(&module, "module", "", "prefix of an imported module to remove, instead of a resource")
	return cmd
}
