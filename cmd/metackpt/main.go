// Package main provides the entry point for metackpt.
//
// metackpt checkpoints metadata components to disk next to a digest
// sidecar, verifies the pairs and restores them.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/metackpt/internal/cli/command"
)

func main() {
	app := command.App()

	// Exit codes returned through cli.Exit are handled by the app itself.
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(command.ExitError)
	}
}
