package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/riven-labs/steward/internal/config"
	"github.com/riven-labs/steward/pkg/coretools"
	"github.com/riven-labs/steward/pkg/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry := tool.NewRegistry()
	if err := coretools.Register(registry, coretools.Options{
		WorkspaceRoot: cfg.WorkspacePath,
	}); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tDESCRIPTION")
	for _, d := range registry.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Kind, d.Description)
	}
	return w.Flush()
}
