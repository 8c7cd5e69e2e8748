package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the configuration from the given file, falling back to
// defaults when the file is absent. Environment variables prefixed with
// STEWARD_ override file values (STEWARD_APPROVAL_MODE, etc).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("STEWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	bindDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("steward")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.steward")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && path != "" {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults seeds viper with defaults so AutomaticEnv can override
// keys that never appear in a config file.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("workspace_path", cfg.WorkspacePath)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("approval.mode", cfg.Approval.Mode)
	v.SetDefault("approval.rules_file", cfg.Approval.RulesFile)
	v.SetDefault("scheduler.approval_timeout", cfg.Scheduler.ApprovalTimeout)
	v.SetDefault("scheduler.execute_timeout", cfg.Scheduler.ExecuteTimeout)
	v.SetDefault("scheduler.grace_period", cfg.Scheduler.GracePeriod)
	v.SetDefault("checkpoint.db_path", cfg.Checkpoint.DBPath)
	v.SetDefault("checkpoint.retention", cfg.Checkpoint.Retention)
	v.SetDefault("checkpoint.sweep_schedule", cfg.Checkpoint.SweepSchedule)
	v.SetDefault("confirm.listen_addr", cfg.Confirm.ListenAddr)
	v.SetDefault("confirm.telegram.bot_token", cfg.Confirm.Telegram.BotToken)
	v.SetDefault("confirm.telegram.chat_id", cfg.Confirm.Telegram.ChatID)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
}
