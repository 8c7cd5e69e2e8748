package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config represents the main Steward configuration
type Config struct {
	// Workspace the runtime operates on
	WorkspacePath string `json:"workspace_path" mapstructure:"workspace_path"`

	// Data directory for checkpoints and logs
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Approval configures the policy pipeline
	Approval ApprovalConfig `json:"approval" mapstructure:"approval"`

	// Scheduler configures per-turn execution
	Scheduler SchedulerConfig `json:"scheduler" mapstructure:"scheduler"`

	// Checkpoint configures the snapshot store
	Checkpoint CheckpointConfig `json:"checkpoint" mapstructure:"checkpoint"`

	// Confirm configures the confirmation surfaces
	Confirm ConfirmConfig `json:"confirm" mapstructure:"confirm"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ApprovalConfig holds policy settings
type ApprovalConfig struct {
	// Mode is one of: default, auto_edit, yolo, plan
	Mode string `json:"mode" mapstructure:"mode"`

	// RulesFile is an optional YAML file of extra deny rules, watched
	// for changes
	RulesFile string `json:"rules_file" mapstructure:"rules_file"`
}

// SchedulerConfig holds per-turn execution settings
type SchedulerConfig struct {
	ApprovalTimeout time.Duration `json:"approval_timeout" mapstructure:"approval_timeout"`
	ExecuteTimeout  time.Duration `json:"execute_timeout" mapstructure:"execute_timeout"`
	GracePeriod     time.Duration `json:"grace_period" mapstructure:"grace_period"`
}

// CheckpointConfig holds snapshot store settings
type CheckpointConfig struct {
	// DBPath overrides the default location under DataDir
	DBPath string `json:"db_path" mapstructure:"db_path"`

	// Retention is how long checkpoints are kept
	Retention time.Duration `json:"retention" mapstructure:"retention"`

	// SweepSchedule is a cron expression for the retention sweeper
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// ConfirmConfig holds confirmation surface settings
type ConfirmConfig struct {
	// ListenAddr serves the websocket confirmation endpoint and metrics
	ListenAddr string `json:"listen_addr" mapstructure:"listen_addr"`

	// Telegram enables the Telegram approval forwarder when a token and
	// chat ID are set
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`
}

// TelegramConfig holds Telegram forwarder settings
type TelegramConfig struct {
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
	ChatID   int64  `json:"chat_id" mapstructure:"chat_id"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".steward")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		WorkspacePath: cwd,
		DataDir:       dataDir,
		Approval: ApprovalConfig{
			Mode: "default",
		},
		Scheduler: SchedulerConfig{
			ApprovalTimeout: 5 * time.Minute,
			GracePeriod:     5 * time.Second,
		},
		Checkpoint: CheckpointConfig{
			Retention:     7 * 24 * time.Hour,
			SweepSchedule: "@hourly",
		},
		Confirm: ConfirmConfig{
			ListenAddr: "127.0.0.1:8137",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}

// CheckpointDBPath returns the effective checkpoint database location
func (c *Config) CheckpointDBPath() string {
	if c.Checkpoint.DBPath != "" {
		return c.Checkpoint.DBPath
	}
	return filepath.Join(c.DataDir, "checkpoints.db")
}
