package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/CyberismoCom/cyberismo-core/pkg/manager"
)

// projectPath is the --project persistent flag every subcommand opens its
// Manager against.
var projectPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cyberismo",
		Short:         "Work with a Cyberismo card repository.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&projectPath, "project", ".", "path to the project root")

	root.AddCommand(
		newShowCmd(),
		newCreateCmd(),
		newEditCmd(),
		newMoveCmd(),
		newTransitionCmd(),
		newRenameCmd(),
		newRemoveCmd(),
		newImportCmd(),
		newValidateCmd(),
		newQueryCmd(),
	)
	return root
}

// openManager opens a Manager rooted at --project on the OS filesystem.
func openManager() (*manager.Manager, error) {
	return manager.New(projectPath)
}

// printEnvelope writes env as indented JSON to cmd's output stream, and
// turns a non-2xx status into a command error so cobra's exit code reflects
// it.
func printEnvelope(cmd *cobra.Command, env manager.Envelope) error {
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	if env.StatusCode >= 300 {
		return errEnvelopeFailed{env}
	}
	return nil
}

// errEnvelopeFailed lets main exit non-zero for a failed Envelope while
// still having already printed it as JSON above.
type errEnvelopeFailed struct {
	env manager.Envelope
}

func (e errEnvelopeFailed) Error() string { return e.env.Message }
