// Package main provides the CLI entry point for the Stagecraft orchestrator.
//
// Stagecraft mediates between a conversational agent and tenant-owned
// content: every tool invocation is attributed to one caller context,
// risky actions go through an explicit confirmation contract, and staged
// content converges to a single published representation.
//
// Start the server:
//
//	stagecraft serve --config stagecraft.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "stagecraft",
		Short:         "Trust-tiered tool orchestration for tenant content agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd())
	root.AddCommand(buildVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stagecraft %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
