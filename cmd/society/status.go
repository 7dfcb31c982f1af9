package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chrysochos/society/internal/config"
	"github.com/chrysochos/society/internal/state"
	"github.com/chrysochos/society/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [purpose-id]",
	Short: "Show purpose state",
	Long: `Display recorded purposes and their progress.

With a purpose ID, shows that purpose's task nodes and escalations.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := filepath.Join(cfg.Data.Dir, "society.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No recorded purposes. Run 'society run <purpose>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if len(args) == 1 {
		return displayPurpose(db, args[0])
	}
	return displayAllPurposes(db)
}

func displayAllPurposes(db *state.DB) error {
	purposes, err := db.ListPurposes()
	if err != nil {
		return fmt.Errorf("list purposes: %w", err)
	}
	if len(purposes) == 0 {
		fmt.Println("No recorded purposes. Run 'society run <purpose>' to start.")
		return nil
	}

	for _, rec := range purposes {
		fmt.Printf("  %s  %-10s %3d%%  %s (%s ago)\n",
			rec.ID, colorState(rec.State), rec.Progress, rec.Description,
			formatDuration(time.Since(rec.CreatedAt)))
	}
	return nil
}

func displayPurpose(db *state.DB, id string) error {
	rec, err := db.GetPurpose(id)
	if err != nil {
		return fmt.Errorf("get purpose: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no purpose %q", id)
	}

	fmt.Printf("Purpose %s: %s\n", rec.ID, rec.Description)
	fmt.Printf("  State: %s\n", colorState(rec.State))
	fmt.Printf("  Progress: %d%%\n", rec.Progress)
	fmt.Printf("  Started: %s ago\n", formatDuration(time.Since(rec.CreatedAt)))
	if rec.CompletedAt != nil {
		fmt.Printf("  Finished: %s ago\n", formatDuration(time.Since(*rec.CompletedAt)))
	}

	nodes, err := db.TaskNodesFor(id)
	if err != nil {
		return fmt.Errorf("list task nodes: %w", err)
	}
	if len(nodes) > 0 {
		fmt.Println("\nTasks:")
		for _, node := range nodes {
			line := fmt.Sprintf("  %-20s %-12s %s", node.WorkerID, node.Status, node.Task)
			if node.Status == models.TaskStatusFailed && node.Error != "" {
				line += " (" + node.Error + ")"
			}
			fmt.Println(line)
		}
	}

	escalations, err := db.EscalationsFor(id)
	if err != nil {
		return fmt.Errorf("list escalations: %w", err)
	}
	if len(escalations) > 0 {
		fmt.Println("\nEscalations:")
		for _, esc := range escalations {
			answer := "(unanswered)"
			if esc.Answered() {
				answer = esc.Response
			}
			fmt.Printf("  [%s] %s -> %s\n", esc.Priority, esc.Question, answer)
		}
	}
	return nil
}

func colorState(s string) string {
	switch s {
	case "completed":
		return color.GreenString(s)
	case "failed":
		return color.RedString(s)
	case "stopped":
		return color.YellowString(s)
	default:
		return s
	}
}
