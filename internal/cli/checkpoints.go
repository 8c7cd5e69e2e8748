package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/riven-labs/steward/internal/config"
	"github.com/riven-labs/steward/pkg/checkpoint"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage workspace checkpoints",
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored checkpoints",
	RunE:  runCheckpointsList,
}

var checkpointsRestoreCmd = &cobra.Command{
	Use:   "restore <checkpoint-id>",
	Short: "Restore the workspace to a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointsRestore,
}

func init() {
	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsCmd.AddCommand(checkpointsRestoreCmd)
	rootCmd.AddCommand(checkpointsCmd)
}

func openStore() (*checkpoint.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return checkpoint.Open(cfg.CheckpointDBPath(), cfg.WorkspacePath)
}

func runCheckpointsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCALL\tMESSAGE\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Checkpoint.ID, e.Checkpoint.CallID, e.MessageID,
			e.Checkpoint.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runCheckpointsRestore(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.Restore(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Restored checkpoint %s: %d file(s) restored, %d removed\n",
		report.CheckpointID, len(report.Restored), len(report.Removed))
	for _, warn := range report.Warnings {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", warn)
	}
	return nil
}
