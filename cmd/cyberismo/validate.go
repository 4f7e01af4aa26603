package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every resource and card against schema, or update the schema version.",
	}
	cmd.AddCommand(newValidateProjectCmd(), newValidateSchemaCmd())
	return cmd
}

func newValidateProjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project",
		Short: "Re-validate every cached resource and card, reporting every violation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return printEnvelope(cmd, m.ValidateProject())
		},
	}
}

func newValidateSchemaCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Run the migration chain up to --target (or the latest known version).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return printEnvelope(cmd, m.UpdateSchema(context.Background(), target))
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target schema version (defaults to the latest known version)")
	return cmd
}
