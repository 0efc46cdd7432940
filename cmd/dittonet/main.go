// Command dittonet runs the DittoNet accept engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dittonet",
		Short: "Completion-driven TCP accept and session-admission engine",
		Long: `DittoNet keeps a fixed number of accepts outstanding on a TCP listener,
turns every accepted connection into a session, lets subscribers veto it
and registers the admitted ones under sequential ids.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		startCmd(),
		initCmd(),
		schemaCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
