package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrysochos/society/internal/config"
	"github.com/chrysochos/society/internal/msglog"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered agents",
	Long:  `List every agent the registry stream knows about, with its role and last-seen time.`,
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := msglog.Open(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	defer store.Close()

	agents, err := store.Agents()
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	if len(agents) == 0 {
		fmt.Println("No agents registered. Run 'society run <purpose>' to start a team.")
		return nil
	}

	for _, rec := range agents {
		fmt.Printf("  %-20s %-12s last seen %s ago\n",
			rec.AgentID, rec.Role, formatDuration(time.Since(rec.LastSeen)))
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
