// Package config handles configuration loading for society.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for society.
type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Mailbox    MailboxConfig    `mapstructure:"mailbox"`
	Fabric     FabricConfig     `mapstructure:"fabric"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Escalation EscalationConfig `mapstructure:"escalation"`
}

// DataConfig holds on-disk storage settings.
type DataConfig struct {
	// Dir is where the message log streams and the state database live.
	Dir string `mapstructure:"dir"`
	// DebugLog is the supervisor debug log path. Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// MailboxConfig bounds each agent's mailbox.
type MailboxConfig struct {
	QueueSize  int `mapstructure:"queue_size"`
	RecentSize int `mapstructure:"recent_size"`
	DedupSize  int `mapstructure:"dedup_size"`
}

// FabricConfig holds messaging settings.
type FabricConfig struct {
	// RatePerPair is the per-(sender,receiver) message budget per window.
	RatePerPair int `mapstructure:"rate_per_pair"`
	// RateWindow is the flood-control window.
	RateWindow time.Duration `mapstructure:"rate_window"`
	// TaskTimeout is the reply window for task delegation.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// ApprovalTimeout is the reply window for approval requests.
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`
}

// SchedulerConfig holds supervisor scheduling settings.
type SchedulerConfig struct {
	// StuckThreshold is how long a task may run before its worker is nudged.
	StuckThreshold time.Duration `mapstructure:"stuck_threshold"`
	// MaxTaskRetries is how many times a failed task is re-dispatched.
	MaxTaskRetries int `mapstructure:"max_task_retries"`
}

// EscalationConfig holds human escalation settings.
type EscalationConfig struct {
	// Timeout is how long to wait for a human response.
	Timeout time.Duration `mapstructure:"timeout"`
	// TimeoutPolicy is one of abort, default, or wait.
	TimeoutPolicy string `mapstructure:"timeout_policy"`
	// DefaultResponse is the answer used under the default policy.
	DefaultResponse string `mapstructure:"default_response"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (SOCIETY_*)
// 2. Project config (.society.yaml in current directory or parent)
// 3. User config (~/.config/society/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SOCIETY")
	v.AutomaticEnv()
	v.BindEnv("data.dir", "SOCIETY_DATA_DIR")
	v.BindEnv("data.debug_log", "SOCIETY_DEBUG_LOG")
	v.BindEnv("escalation.timeout_policy", "SOCIETY_ESCALATION_POLICY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Data.Dir = os.ExpandEnv(cfg.Data.Dir)
	cfg.Data.DebugLog = os.ExpandEnv(cfg.Data.DebugLog)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("data.dir", cfg.Data.Dir)
	v.Set("data.debug_log", cfg.Data.DebugLog)
	v.Set("mailbox.queue_size", cfg.Mailbox.QueueSize)
	v.Set("mailbox.recent_size", cfg.Mailbox.RecentSize)
	v.Set("mailbox.dedup_size", cfg.Mailbox.DedupSize)
	v.Set("fabric.rate_per_pair", cfg.Fabric.RatePerPair)
	v.Set("fabric.rate_window", cfg.Fabric.RateWindow.String())
	v.Set("fabric.task_timeout", cfg.Fabric.TaskTimeout.String())
	v.Set("fabric.approval_timeout", cfg.Fabric.ApprovalTimeout.String())
	v.Set("scheduler.stuck_threshold", cfg.Scheduler.StuckThreshold.String())
	v.Set("scheduler.max_task_retries", cfg.Scheduler.MaxTaskRetries)
	v.Set("escalation.timeout", cfg.Escalation.Timeout.String())
	v.Set("escalation.timeout_policy", cfg.Escalation.TimeoutPolicy)
	v.Set("escalation.default_response", cfg.Escalation.DefaultResponse)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", defaultDataDir())
	v.SetDefault("data.debug_log", "")

	v.SetDefault("mailbox.queue_size", 256)
	v.SetDefault("mailbox.recent_size", 50)
	v.SetDefault("mailbox.dedup_size", 1024)

	v.SetDefault("fabric.rate_per_pair", 10)
	v.SetDefault("fabric.rate_window", "1m")
	v.SetDefault("fabric.task_timeout", "60s")
	v.SetDefault("fabric.approval_timeout", "30s")

	v.SetDefault("scheduler.stuck_threshold", "5m")
	v.SetDefault("scheduler.max_task_retries", 0)

	v.SetDefault("escalation.timeout", "30m")
	v.SetDefault("escalation.timeout_policy", "abort")
	v.SetDefault("escalation.default_response", "")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{Dir: defaultDataDir()},
		Mailbox: MailboxConfig{
			QueueSize:  256,
			RecentSize: 50,
			DedupSize:  1024,
		},
		Fabric: FabricConfig{
			RatePerPair:     10,
			RateWindow:      time.Minute,
			TaskTimeout:     60 * time.Second,
			ApprovalTimeout: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			StuckThreshold: 5 * time.Minute,
		},
		Escalation: EscalationConfig{
			Timeout:       30 * time.Minute,
			TimeoutPolicy: "abort",
		},
	}
}

// defaultDataDir is where streams and the state database live when no
// directory is configured.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".society")
	}
	return filepath.Join(home, ".local", "share", "society")
}

// getUserConfigDir returns the XDG config directory for society.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "society")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "society")
	}
	return filepath.Join(home, ".config", "society")
}

// findProjectConfig searches for .society.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".society.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
