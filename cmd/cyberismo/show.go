package main

import (
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "show <entity> [name]",
		Short: "Show a project, module, card, or resource.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			entity := args[0]
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			var opts map[string]any
			if file != "" {
				opts = map[string]any{"file": file}
			}
			return printEnvelope(cmd, m.Show(entity, name, opts))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "attachment file name, for `show attachment <cardKey> --file <name>`")
	return cmd
}
