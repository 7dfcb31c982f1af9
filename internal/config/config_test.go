package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Fabric.RatePerPair != 10 {
		t.Errorf("rate per pair = %d, want 10", cfg.Fabric.RatePerPair)
	}
	if cfg.Fabric.RateWindow != time.Minute {
		t.Errorf("rate window = %v, want 1m", cfg.Fabric.RateWindow)
	}
	if cfg.Fabric.TaskTimeout != 60*time.Second {
		t.Errorf("task timeout = %v, want 60s", cfg.Fabric.TaskTimeout)
	}
	if cfg.Fabric.ApprovalTimeout != 30*time.Second {
		t.Errorf("approval timeout = %v, want 30s", cfg.Fabric.ApprovalTimeout)
	}
	if cfg.Scheduler.StuckThreshold != 5*time.Minute {
		t.Errorf("stuck threshold = %v, want 5m", cfg.Scheduler.StuckThreshold)
	}
	if cfg.Escalation.TimeoutPolicy != "abort" {
		t.Errorf("escalation policy = %q, want abort", cfg.Escalation.TimeoutPolicy)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data:
  dir: /tmp/society-test
mailbox:
  queue_size: 16
fabric:
  rate_per_pair: 3
  task_timeout: 5s
scheduler:
  stuck_threshold: 30s
  max_task_retries: 2
escalation:
  timeout_policy: default
  default_response: continue
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Data.Dir != "/tmp/society-test" {
		t.Errorf("data dir = %q", cfg.Data.Dir)
	}
	if cfg.Mailbox.QueueSize != 16 {
		t.Errorf("queue size = %d, want 16", cfg.Mailbox.QueueSize)
	}
	if cfg.Fabric.RatePerPair != 3 {
		t.Errorf("rate per pair = %d, want 3", cfg.Fabric.RatePerPair)
	}
	if cfg.Fabric.TaskTimeout != 5*time.Second {
		t.Errorf("task timeout = %v, want 5s", cfg.Fabric.TaskTimeout)
	}
	if cfg.Scheduler.MaxTaskRetries != 2 {
		t.Errorf("retries = %d, want 2", cfg.Scheduler.MaxTaskRetries)
	}
	if cfg.Escalation.TimeoutPolicy != "default" || cfg.Escalation.DefaultResponse != "continue" {
		t.Errorf("escalation = %+v", cfg.Escalation)
	}

	// Unspecified keys keep their defaults.
	if cfg.Mailbox.DedupSize != 1024 {
		t.Errorf("dedup size = %d, want default 1024", cfg.Mailbox.DedupSize)
	}
	if cfg.Fabric.ApprovalTimeout != 30*time.Second {
		t.Errorf("approval timeout = %v, want default 30s", cfg.Fabric.ApprovalTimeout)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveRoundTrips(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Fabric.RatePerPair = 7
	cfg.Scheduler.MaxTaskRetries = 1
	cfg.Escalation.TimeoutPolicy = "wait"

	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if loaded.Fabric.RatePerPair != 7 {
		t.Errorf("rate per pair = %d, want 7", loaded.Fabric.RatePerPair)
	}
	if loaded.Scheduler.MaxTaskRetries != 1 {
		t.Errorf("retries = %d, want 1", loaded.Scheduler.MaxTaskRetries)
	}
	if loaded.Escalation.TimeoutPolicy != "wait" {
		t.Errorf("policy = %q, want wait", loaded.Escalation.TimeoutPolicy)
	}
}
