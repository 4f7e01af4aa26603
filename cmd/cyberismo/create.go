package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a card, resource, or attachment.",
	}
	cmd.AddCommand(newCreateCardCmd(), newCreateResourceCmd(), newCreateAttachmentCmd())
	return cmd
}

func newCreateCardCmd() *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "card <templateName>",
		Short: "Clone a template's card subtree into the project.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return printEnvelope(cmd, m.CreateCard(context.Background(), args[0], parent))
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent card key (project root when empty)")
	return cmd
}

func newCreateResourceCmd() *cobra.Command {
	var docFile string
	cmd := &cobra.Command{
		Use:   "resource <kind> <identifier>",
		Short: "Create a new local resource from a JSON document file.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			doc := map[string]any{}
			if docFile != "" {
				b, err := os.ReadFile(docFile)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(b, &doc); err != nil {
					return err
				}
			}
			return printEnvelope(cmd, m.CreateResource(context.Background(), resource.Kind(args[0]), args[1], doc, nil))
		},
	}
	cmd.Flags().StringVar(&docFile, "doc", "", "path to a JSON file with the resource document")
	return cmd
}

func newCreateAttachmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachment <cardKey> <file>",
		Short: "Upload a single attachment file onto a card.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return printEnvelope(cmd, m.CreateAttachment(context.Background(), args[0], filepath.Base(args[1]), data))
		},
	}
	return cmd
}
