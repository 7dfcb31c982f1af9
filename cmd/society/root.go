package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "society",
	Short: "Coordination substrate for multi-agent teams",
	Long: `Society coordinates a team of autonomous agents pursuing a shared goal.

A supervisor breaks a purpose into a dependency graph of tasks, assembles a
worker per task, and dispatches the graph in waves over a durable messaging
fabric. Messages are persisted before delivery, deduplicated at the mailbox,
rate limited per sender/receiver pair, and redelivered when an agent comes
back.

Core capabilities:
- Runs a purpose end to end with 'society run'
- Durable agent-to-agent messaging with 'society send' and 'society broadcast'
- Inspects the registry, message log, and purpose state`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
