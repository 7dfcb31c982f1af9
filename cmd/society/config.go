package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrysochos/society/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify society configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/society/config.yaml
Project-specific overrides can be placed in .society.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("data.dir: %s\n", cfg.Data.Dir)
	fmt.Printf("data.debug_log: %s\n", cfg.Data.DebugLog)
	fmt.Printf("mailbox.queue_size: %d\n", cfg.Mailbox.QueueSize)
	fmt.Printf("mailbox.recent_size: %d\n", cfg.Mailbox.RecentSize)
	fmt.Printf("mailbox.dedup_size: %d\n", cfg.Mailbox.DedupSize)
	fmt.Printf("fabric.rate_per_pair: %d\n", cfg.Fabric.RatePerPair)
	fmt.Printf("fabric.rate_window: %s\n", cfg.Fabric.RateWindow)
	fmt.Printf("fabric.task_timeout: %s\n", cfg.Fabric.TaskTimeout)
	fmt.Printf("fabric.approval_timeout: %s\n", cfg.Fabric.ApprovalTimeout)
	fmt.Printf("scheduler.stuck_threshold: %s\n", cfg.Scheduler.StuckThreshold)
	fmt.Printf("scheduler.max_task_retries: %d\n", cfg.Scheduler.MaxTaskRetries)
	fmt.Printf("escalation.timeout: %s\n", cfg.Escalation.Timeout)
	fmt.Printf("escalation.timeout_policy: %s\n", cfg.Escalation.TimeoutPolicy)
	fmt.Printf("escalation.default_response: %s\n", cfg.Escalation.DefaultResponse)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue reads one configuration value by dotted key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "data.dir":
		return cfg.Data.Dir, nil
	case "data.debug_log":
		return cfg.Data.DebugLog, nil
	case "mailbox.queue_size":
		return strconv.Itoa(cfg.Mailbox.QueueSize), nil
	case "mailbox.recent_size":
		return strconv.Itoa(cfg.Mailbox.RecentSize), nil
	case "mailbox.dedup_size":
		return strconv.Itoa(cfg.Mailbox.DedupSize), nil
	case "fabric.rate_per_pair":
		return strconv.Itoa(cfg.Fabric.RatePerPair), nil
	case "fabric.rate_window":
		return cfg.Fabric.RateWindow.String(), nil
	case "fabric.task_timeout":
		return cfg.Fabric.TaskTimeout.String(), nil
	case "fabric.approval_timeout":
		return cfg.Fabric.ApprovalTimeout.String(), nil
	case "scheduler.stuck_threshold":
		return cfg.Scheduler.StuckThreshold.String(), nil
	case "scheduler.max_task_retries":
		return strconv.Itoa(cfg.Scheduler.MaxTaskRetries), nil
	case "escalation.timeout":
		return cfg.Escalation.Timeout.String(), nil
	case "escalation.timeout_policy":
		return cfg.Escalation.TimeoutPolicy, nil
	case "escalation.default_response":
		return cfg.Escalation.DefaultResponse, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// setConfigValue writes one configuration value by dotted key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "data.dir":
		cfg.Data.Dir = value
	case "data.debug_log":
		cfg.Data.DebugLog = value
	case "mailbox.queue_size":
		return setInt(&cfg.Mailbox.QueueSize, value)
	case "mailbox.recent_size":
		return setInt(&cfg.Mailbox.RecentSize, value)
	case "mailbox.dedup_size":
		return setInt(&cfg.Mailbox.DedupSize, value)
	case "fabric.rate_per_pair":
		return setInt(&cfg.Fabric.RatePerPair, value)
	case "fabric.rate_window":
		return setDuration(&cfg.Fabric.RateWindow, value)
	case "fabric.task_timeout":
		return setDuration(&cfg.Fabric.TaskTimeout, value)
	case "fabric.approval_timeout":
		return setDuration(&cfg.Fabric.ApprovalTimeout, value)
	case "scheduler.stuck_threshold":
		return setDuration(&cfg.Scheduler.StuckThreshold, value)
	case "scheduler.max_task_retries":
		return setInt(&cfg.Scheduler.MaxTaskRetries, value)
	case "escalation.timeout":
		return setDuration(&cfg.Escalation.Timeout, value)
	case "escalation.timeout_policy":
		if value != "abort" && value != "default" && value != "wait" {
			return fmt.Errorf("timeout_policy must be abort, default, or wait")
		}
		cfg.Escalation.TimeoutPolicy = value
	case "escalation.default_response":
		cfg.Escalation.DefaultResponse = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer %q", value)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*dst = d
	return nil
}
