package coretools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/riven-labs/steward/pkg/tool"
)

// irreversiblePatterns mark commands whose confirmation may not be
// skipped even under a policy allow.
var irreversiblePatterns = []string{
	"rm -r", "rm -f", "git push --force", "git reset --hard",
	"truncate", "shred", "drop table", "drop database",
}

func execTool(opts Options) *tool.Descriptor {
	return &tool.Descriptor{
		Name:        "exec",
		DisplayName: "Shell",
		Description: "Run a shell command in the workspace. Commands share one exclusive shell session.",
		Kind:        tool.KindShell,
		Session:     "shell",
		Schema: tool.ObjectSchema(map[string]interface{}{
			"command": tool.StringProperty("Shell command to run"),
			"cwd":     tool.StringProperty("Workspace-relative working directory"),
		}, "command"),
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("exec: %s", argString(args, "command"))
		},
		Confirm: func(ctx context.Context, args map[string]interface{}) (*tool.ConfirmationDetails, error) {
			command := argString(args, "command")
			details := &tool.ConfirmationDetails{
				Summary: fmt.Sprintf("Run shell command: %s", command),
			}
			for _, pattern := range irreversiblePatterns {
				if strings.Contains(strings.ToLower(command), pattern) {
					details.Warning = fmt.Sprintf("command matches irreversible pattern %q", pattern)
					details.NonSkippable = true
					break
				}
			}
			return details, nil
		},
		Handler: func(ctx context.Context, args map[string]interface{}) tool.Result {
			command := strings.TrimSpace(argString(args, "command"))
			if command == "" {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "command is required"))
			}

			cwd := opts.WorkspaceRoot
			if raw := argString(args, "cwd"); raw != "" {
				abs, err := resolvePath(opts.WorkspaceRoot, raw)
				if err != nil {
					return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "%v", err))
				}
				cwd = abs
			}

			cmd := exec.CommandContext(ctx, "sh", "-c", command)
			cmd.Dir = cwd
			// The command runs in its own process group so that
			// cancellation reaches grandchildren too; without the group
			// kill, `sh -c "sleep 30"` would block Run for the sleep's
			// full duration after the context fires.
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
			cmd.Cancel = func() error {
				return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
			cmd.WaitDelay = 2 * time.Second

			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			err := cmd.Run()

			if ctx.Err() != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultCancelled, "command cancelled: %s", command))
			}

			output := stdout.String()
			if stderr.Len() > 0 {
				output += "\nstderr:\n" + stderr.String()
			}

			if err != nil {
				// A non-zero exit is a tool-level failure the model can
				// react to, reported through the result error.
				return tool.Result{
					LLMContent:     output,
					DisplayContent: fmt.Sprintf("Command failed: %s", command),
					Err:            tool.NewFault(tool.FaultExecutionFailed, "command failed: %v", err),
				}
			}

			return tool.Result{
				LLMContent:     output,
				DisplayContent: fmt.Sprintf("Ran: %s", command),
			}
		},
	}
}
