package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit a card's content or metadata.",
	}
	cmd.AddCommand(newEditContentCmd(), newEditMetadataCmd())
	return cmd
}

func newEditContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content <cardKey> <file>",
		Short: "Replace a card's AsciiDoc body with the contents of file.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			b, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return printEnvelope(cmd, m.EditCardContent(context.Background(), args[0], string(b)))
		},
	}
	return cmd
}

func newEditMetadataCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "metadata <cardKey> <fieldName> [jsonValue]",
		Short: "Set (or, with --clear, unset) one custom field on a card.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			var value any
			if !clear && len(args) == 3 {
				if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
					value = args[2]
				}
			}
			return printEnvelope(cmd, m.EditCardMetadata(context.Background(), args[0], args[1], value))
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the field instead of setting it")
	return cmd
}
