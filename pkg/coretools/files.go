package coretools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/riven-labs/steward/pkg/tool"
)

func readFileTool(opts Options) *tool.Descriptor {
	return &tool.Descriptor{
		Name:        "read_file",
		DisplayName: "Read File",
		Description: "Read the contents of a file in the workspace.",
		Kind:        tool.KindRead,
		Schema: tool.ObjectSchema(map[string]interface{}{
			"path": tool.StringProperty("Workspace-relative file path"),
		}, "path"),
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("read %s", argString(args, "path"))
		},
		Handler: func(ctx context.Context, args map[string]interface{}) tool.Result {
			abs, err := resolvePath(opts.WorkspaceRoot, args["path"])
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "%v", err))
			}

			content, err := os.ReadFile(abs)
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "failed to read %s: %v", argString(args, "path"), err))
			}

			return tool.Result{
				LLMContent:     string(content),
				DisplayContent: fmt.Sprintf("Read %d bytes from %s", len(content), argString(args, "path")),
			}
		},
	}
}

func writeFileTool(opts Options) *tool.Descriptor {
	return &tool.Descriptor{
		Name:        "write_file",
		DisplayName: "Write File",
		Description: "Create or overwrite a file in the workspace.",
		Kind:        tool.KindEdit,
		Restorable:  true,
		Schema: tool.ObjectSchema(map[string]interface{}{
			"path":    tool.StringProperty("Workspace-relative file path"),
			"content": tool.StringProperty("Full file content to write"),
		}, "path", "content"),
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("write %s (%d bytes)", argString(args, "path"), len(argString(args, "content")))
		},
		Paths: func(args map[string]interface{}) []string {
			return []string{argString(args, "path")}
		},
		Confirm: func(ctx context.Context, args map[string]interface{}) (*tool.ConfirmationDetails, error) {
			return &tool.ConfirmationDetails{
				Summary: fmt.Sprintf("Write %d bytes to %s", len(argString(args, "content")), argString(args, "path")),
			}, nil
		},
		Handler: func(ctx context.Context, args map[string]interface{}) tool.Result {
			abs, err := resolvePath(opts.WorkspaceRoot, args["path"])
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "%v", err))
			}

			if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "failed to create directory: %v", err))
			}

			content := argString(args, "content")
			if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "failed to write %s: %v", argString(args, "path"), err))
			}

			return tool.Result{
				LLMContent:     fmt.Sprintf("wrote %d bytes to %s", len(content), argString(args, "path")),
				DisplayContent: fmt.Sprintf("Wrote %s", argString(args, "path")),
			}
		},
	}
}

func editFileTool(opts Options) *tool.Descriptor {
	return &tool.Descriptor{
		Name:        "edit_file",
		DisplayName: "Edit File",
		Description: "Replace an exact string in a file. The old string must appear exactly once.",
		Kind:        tool.KindEdit,
		Restorable:  true,
		Schema: tool.ObjectSchema(map[string]interface{}{
			"path":       tool.StringProperty("Workspace-relative file path"),
			"old_string": tool.StringProperty("Exact text to replace"),
			"new_string": tool.StringProperty("Replacement text"),
		}, "path", "old_string", "new_string"),
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("edit %s", argString(args, "path"))
		},
		Paths: func(args map[string]interface{}) []string {
			return []string{argString(args, "path")}
		},
		Confirm: func(ctx context.Context, args map[string]interface{}) (*tool.ConfirmationDetails, error) {
			return &tool.ConfirmationDetails{
				Summary: fmt.Sprintf("Edit %s", argString(args, "path")),
			}, nil
		},
		Handler: func(ctx context.Context, args map[string]interface{}) tool.Result {
			path := argString(args, "path")
			abs, err := resolvePath(opts.WorkspaceRoot, args["path"])
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "%v", err))
			}

			content, err := os.ReadFile(abs)
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "failed to read %s: %v", path, err))
			}

			oldString := argString(args, "old_string")
			newString := argString(args, "new_string")

			count := strings.Count(string(content), oldString)
			if count == 0 {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "old_string not found in %s", path))
			}
			if count > 1 {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "old_string appears %d times in %s; it must be unique", count, path))
			}

			updated := strings.Replace(string(content), oldString, newString, 1)
			if err := os.WriteFile(abs, []byte(updated), 0644); err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "failed to write %s: %v", path, err))
			}

			return tool.Result{
				LLMContent:     fmt.Sprintf("edited %s", path),
				DisplayContent: fmt.Sprintf("Edited %s", path),
			}
		},
	}
}
