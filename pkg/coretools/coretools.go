package coretools

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/riven-labs/steward/pkg/tool"
)

// Options configures core tool registration.
type Options struct {
	// WorkspaceRoot confines every file tool; paths escaping it are
	// rejected at execution.
	WorkspaceRoot string

	// MaxFetchBytes caps web_fetch response bodies. Zero means 5MB.
	MaxFetchBytes int64

	// SearchURL overrides the web_search results endpoint, mainly for
	// tests. Empty uses the DuckDuckGo HTML endpoint.
	SearchURL string
}

// Register registers the baseline tool set: file read/write/edit, shell
// exec, web fetch and web search.
func Register(registry *tool.Registry, opts Options) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}
	if opts.WorkspaceRoot == "" {
		return errors.New("workspace root is required")
	}

	descriptors := []*tool.Descriptor{
		readFileTool(opts),
		writeFileTool(opts),
		editFileTool(opts),
		execTool(opts),
		webFetchTool(opts),
		webSearchTool(opts),
	}

	for _, d := range descriptors {
		if err := registry.Register(d); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", d.Name, err)
		}
	}
	return nil
}

// resolvePath confines a workspace-relative path to the root.
func resolvePath(root string, raw interface{}) (string, error) {
	rel, _ := raw.(string)
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path must be workspace-relative")
	}

	abs := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the workspace", rel)
	}
	return abs, nil
}

func argString(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}
