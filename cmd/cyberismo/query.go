package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

func decodeJSONParams(raw string, out *map[string]any) error {
	return json.Unmarshal([]byte(raw), out)
}

func newQueryCmd() *cobra.Command {
	var params string
	var categories []string
	var logicProgram bool
	cmd := &cobra.Command{
		Use:   "query <name-or-program>",
		Short: "Run a named query (or, with --logic-program, an ad-hoc query text).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			if logicProgram {
				return printEnvelope(cmd, m.RunLogicProgram(context.Background(), args[0], categories))
			}
			var decoded map[string]any
			if params != "" {
				if err := decodeJSONParams(params, &decoded); err != nil {
					return err
				}
			}
			return printEnvelope(cmd, m.RunQuery(context.Background(), args[0], decoded, categories))
		},
	}
	cmd.Flags().StringVar(&params, "params", "", "query parameters as a JSON object")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "restrict evaluation to these resource categories")
	cmd.Flags().BoolVar(&logicProgram, "logic-program", false, "treat the argument as ad-hoc Rego query text")
	return cmd
}
