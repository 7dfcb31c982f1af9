package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chrysochos/society/internal/config"
	"github.com/chrysochos/society/internal/exec"
	"github.com/chrysochos/society/internal/fabric"
	"github.com/chrysochos/society/internal/mailbox"
	"github.com/chrysochos/society/internal/msglog"
	"github.com/chrysochos/society/internal/state"
	"github.com/chrysochos/society/internal/supervisor"
	"github.com/chrysochos/society/pkg/models"
)

var (
	runPurposeID  string
	runWorkerCmd  string
	runPlannerCmd string
	runContext    string
)

var runCmd = &cobra.Command{
	Use:   "run <purpose description>",
	Short: "Run a purpose to completion",
	Long: `Run a purpose: analyze the team, plan the task graph, and dispatch
it wave by wave until every task is terminal.

By default tasks are executed by a scripted no-op capability that echoes
each task as completed, which exercises the full coordination path without
doing real work. Point --worker-cmd at a shell command to execute tasks for
real; the task lands in $SOCIETY_TASK and a zero exit status completes it.

Escalations are printed to the terminal and answered interactively.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPurpose,
}

func init() {
	runCmd.Flags().StringVar(&runPurposeID, "id", "", "Purpose ID (generated if empty)")
	runCmd.Flags().StringVar(&runWorkerCmd, "worker-cmd", "", "Shell command workers execute tasks with")
	runCmd.Flags().StringVar(&runPlannerCmd, "planner-cmd", "", "Shell command used for team analysis and planning")
	runCmd.Flags().StringVar(&runContext, "context", "", "Additional context for planning")
}

func runPurpose(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := msglog.Open(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	defer store.Close()

	db, err := state.Open(filepath.Join(cfg.Data.Dir, "society.db"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state database: %w", err)
	}

	logger, err := supervisor.NewDebugLogger(cfg.Data.DebugLog)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer logger.Close()

	fab := fabric.New(store, fabric.Options{
		RatePerPair:     cfg.Fabric.RatePerPair,
		RateWindow:      cfg.Fabric.RateWindow,
		TaskTimeout:     cfg.Fabric.TaskTimeout,
		ApprovalTimeout: cfg.Fabric.ApprovalTimeout,
		Mailbox: mailbox.Options{
			QueueSize:  cfg.Mailbox.QueueSize,
			RecentSize: cfg.Mailbox.RecentSize,
			DedupSize:  cfg.Mailbox.DedupSize,
		},
		Logf: logger.Log,
	})

	purposeID := runPurposeID
	if purposeID == "" {
		purposeID = uuid.New().String()[:8]
	}
	purpose := &models.Purpose{
		ID:          purposeID,
		Description: strings.Join(args, " "),
		Context:     runContext,
		CreatedAt:   time.Now().UTC(),
	}

	sup, err := supervisor.New(supervisor.Config{
		Purpose:        purpose,
		Fabric:         fab,
		Planner:        capabilityFor(runPlannerCmd),
		Workers:        capabilityFor(runWorkerCmd),
		DB:             db,
		Logger:         logger,
		TaskTimeout:    cfg.Fabric.TaskTimeout,
		StuckThreshold: cfg.Scheduler.StuckThreshold,
		MaxTaskRetries: cfg.Scheduler.MaxTaskRetries,
		Escalation: supervisor.EscalationConfig{
			Timeout:         cfg.Escalation.Timeout,
			Policy:          supervisor.TimeoutPolicy(cfg.Escalation.TimeoutPolicy),
			DefaultResponse: cfg.Escalation.DefaultResponse,
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		watchEvents(sup)
	}()

	fmt.Printf("Purpose %s: %s\n\n", color.CyanString(purpose.ID), purpose.Description)

	summary, runErr := sup.Run(ctx)
	<-eventsDone

	printSummary(summary)
	if runErr != nil && summary.State != supervisor.StateStopped {
		return runErr
	}
	return nil
}

// capabilityFor picks the execution capability for a command-line flag.
// An empty command means the scripted echo capability.
func capabilityFor(command string) exec.WorkerExecutor {
	if command == "" {
		return exec.NewScripted()
	}
	return exec.NewCommand(command)
}

// watchEvents renders the supervisor's event stream and answers
// escalations from stdin.
func watchEvents(sup *supervisor.Supervisor) {
	stdin := bufio.NewReader(os.Stdin)

	for ev := range sup.Events() {
		switch ev.Type {
		case supervisor.EventStateChanged:
			fmt.Printf("%s %s\n", color.HiBlackString("state"), ev.State)
		case supervisor.EventTeamAssembled:
			fmt.Printf("%s %s\n", color.GreenString("team"), ev.Message)
		case supervisor.EventPlanReady:
			fmt.Printf("%s %s\n", color.GreenString("plan"), ev.Message)
		case supervisor.EventWaveStarted:
			fmt.Printf("%s wave %d: %s\n", color.CyanString("wave"), ev.Wave, ev.Message)
		case supervisor.EventTaskDispatched:
			fmt.Printf("  %s %s: %s\n", color.YellowString("->"), ev.WorkerID, ev.Message)
		case supervisor.EventTaskCompleted:
			fmt.Printf("  %s %s\n", color.GreenString("ok"), ev.WorkerID)
		case supervisor.EventTaskFailed:
			fmt.Printf("  %s %s: %v\n", color.RedString("fail"), ev.WorkerID, ev.Error)
		case supervisor.EventTaskStuck:
			fmt.Printf("  %s %s nudged: %s\n", color.YellowString("stuck"), ev.WorkerID, ev.Message)
		case supervisor.EventProgress:
			fmt.Printf("%s %d%%\n", color.HiBlackString("progress"), ev.Progress)
		case supervisor.EventEscalationRaised:
			answerEscalation(sup, stdin, ev)
		case supervisor.EventEscalationResolved:
			fmt.Printf("%s %s\n", color.MagentaString("resolved"), ev.Message)
		}
	}
}

// answerEscalation prompts the operator and forwards the answer.
func answerEscalation(sup *supervisor.Supervisor, stdin *bufio.Reader, ev supervisor.Event) {
	fmt.Printf("\n%s %s\n", color.MagentaString("escalation"), ev.Message)
	fmt.Print("> ")

	line, err := stdin.ReadString('\n')
	if err != nil {
		return
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return
	}
	if err := sup.Escalations().Respond(answer); err != nil {
		fmt.Fprintf(os.Stderr, "escalation response not delivered: %v\n", err)
	}
}

func printSummary(summary supervisor.Summary) {
	stateStr := string(summary.State)
	switch summary.State {
	case supervisor.StateCompleted:
		stateStr = color.GreenString(stateStr)
	case supervisor.StateFailed:
		stateStr = color.RedString(stateStr)
	default:
		stateStr = color.YellowString(stateStr)
	}

	fmt.Printf("\nPurpose %s: %s (%d/%d tasks, %d%%)\n",
		summary.PurposeID, stateStr, summary.Completed, summary.Total, summary.Progress)
	for _, node := range summary.Nodes {
		if node.Status == models.TaskStatusCompleted {
			fmt.Printf("  %s %s: %s\n", color.GreenString("ok"), node.WorkerID, node.Result)
		} else {
			fmt.Printf("  %s %s: %s\n", color.RedString(string(node.Status)), node.WorkerID, node.Error)
		}
	}
}
