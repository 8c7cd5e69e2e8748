package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/riven-labs/steward/pkg/policy"
)

var (
	// ErrWorkspaceMissing indicates the workspace path does not exist
	ErrWorkspaceMissing = errors.New("workspace path does not exist")

	// ErrInvalidApprovalMode indicates an unrecognized approval mode
	ErrInvalidApprovalMode = errors.New("invalid approval mode")

	// ErrInvalidTimeout indicates a non-positive duration where a
	// positive one is required
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// Validate checks the configuration for consistency
func Validate(cfg *Config) error {
	if cfg.WorkspacePath == "" {
		return ErrWorkspaceMissing
	}
	info, err := os.Stat(cfg.WorkspacePath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrWorkspaceMissing, cfg.WorkspacePath)
	}

	if _, err := policy.ParseApprovalMode(cfg.Approval.Mode); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidApprovalMode, cfg.Approval.Mode)
	}

	if cfg.Scheduler.ApprovalTimeout <= 0 {
		return fmt.Errorf("%w: scheduler.approval_timeout must be positive", ErrInvalidTimeout)
	}
	if cfg.Scheduler.GracePeriod <= 0 {
		return fmt.Errorf("%w: scheduler.grace_period must be positive", ErrInvalidTimeout)
	}
	if cfg.Checkpoint.Retention <= 0 {
		return fmt.Errorf("%w: checkpoint.retention must be positive", ErrInvalidTimeout)
	}
	return nil
}
