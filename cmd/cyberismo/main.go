// Command cyberismo is a thin CLI host over pkg/manager: every subcommand
// opens a Manager for --project, calls one facade method, and prints the
// resulting Envelope as JSON.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
