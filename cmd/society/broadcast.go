package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chrysochos/society/pkg/models"
)

var (
	broadcastFrom string
	broadcastType string
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <content>",
	Short: "Broadcast a message to every registered agent",
	Long: `Deliver an independent copy of a message to every agent in the
registry except the sender. Each copy is persisted separately and
deduplicated independently at its recipient.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBroadcast,
}

func init() {
	broadcastCmd.Flags().StringVar(&broadcastFrom, "from", "operator", "Sending agent ID")
	broadcastCmd.Flags().StringVar(&broadcastType, "type", string(models.TypeMessage), "Message type")
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	typ := models.MessageType(broadcastType)
	if !typ.Valid() {
		return fmt.Errorf("unknown message type %q", broadcastType)
	}

	store, fab, err := openFabric()
	if err != nil {
		return err
	}
	defer store.Close()

	sender, err := bindAs(fab, broadcastFrom)
	if err != nil {
		return err
	}

	if err := sender.Broadcast(typ, strings.Join(args, " ")); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	recipients := len(fab.Agents()) - 1
	fmt.Printf("%s %s -> %d agents\n", color.GreenString("broadcast"), broadcastFrom, recipients)
	return nil
}
