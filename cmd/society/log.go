package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrysochos/society/internal/config"
	"github.com/chrysochos/society/internal/msglog"
)

var (
	logAgent string
	logLimit int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the persistent message log",
	Long:  `Print recorded messages from the append-only message stream, oldest first.`,
	RunE:  runLog,
}

func init() {
	logCmd.Flags().StringVar(&logAgent, "agent", "", "Only messages to or from this agent")
	logCmd.Flags().IntVar(&logLimit, "limit", 50, "Maximum number of messages to show")
}

func runLog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := msglog.Open(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	defer store.Close()

	msgs, err := store.Messages()
	if err != nil {
		return fmt.Errorf("read messages: %w", err)
	}

	var shown []int
	for i, msg := range msgs {
		if logAgent != "" && msg.From != logAgent && msg.To != logAgent {
			continue
		}
		shown = append(shown, i)
	}
	if len(shown) > logLimit {
		shown = shown[len(shown)-logLimit:]
	}
	if len(shown) == 0 {
		fmt.Println("No messages recorded.")
		return nil
	}

	for _, i := range shown {
		msg := msgs[i]
		fmt.Printf("  %s  %-13s %s -> %s: %s\n",
			msg.Timestamp.Format("15:04:05"), msg.Type, msg.From, msg.To, msg.Content)
	}
	return nil
}
