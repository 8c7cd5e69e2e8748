package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// RestoreReport lists exactly what a restore changed.
type RestoreReport struct {
	CheckpointID string   `json:"checkpoint_id"`
	Restored     []string `json:"restored"`
	Removed      []string `json:"removed"`
	Warnings     []string `json:"warnings,omitempty"`
}

type manifestEntry struct {
	path    string
	hash    string
	mode    os.FileMode
	existed bool
}

// Restore applies a checkpoint back onto the workspace. Files are staged
// to temporary siblings and renamed into place so a failure mid-restore
// leaves originals untouched. Files whose current content no longer
// matches the snapshot hash are restored anyway but reported as warnings,
// since something else modified them after the snapshot.
func (s *Store) Restore(ctx context.Context, checkpointID string) (*RestoreReport, error) {
	cp, err := s.Get(checkpointID)
	if err != nil {
		return nil, err
	}

	entries, err := s.manifest(cp.SnapshotRef)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("checkpoint %s has an empty manifest", checkpointID)
	}

	report := &RestoreReport{CheckpointID: checkpointID}

	// Stage every blob first; nothing is touched until all reads succeed.
	type staged struct {
		entry   manifestEntry
		abs     string
		tmp     string
		content []byte
	}
	plan := make([]staged, 0, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		abs := filepath.Join(s.root, entry.path)

		if current, readErr := os.ReadFile(abs); readErr == nil {
			if entry.existed && hashBytes(current) != entry.hash {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("%s was modified after the snapshot; overwriting", entry.path))
			}
		}

		if !entry.existed {
			plan = append(plan, staged{entry: entry, abs: abs})
			continue
		}

		var content []byte
		row := s.db.QueryRow(`SELECT content FROM blobs WHERE hash = ?`, entry.hash)
		if err := row.Scan(&content); err != nil {
			return nil, fmt.Errorf("missing blob for %s: %w", entry.path, err)
		}

		tmp, err := stageFile(abs, content)
		if err != nil {
			for _, st := range plan {
				if st.tmp != "" {
					os.Remove(st.tmp)
				}
			}
			return nil, err
		}
		plan = append(plan, staged{entry: entry, abs: abs, tmp: tmp, content: content})
	}

	// Commit: rename staged files into place, delete files that did not
	// exist at snapshot time.
	for _, st := range plan {
		if !st.entry.existed {
			if err := os.Remove(st.abs); err != nil && !os.IsNotExist(err) {
				return report, fmt.Errorf("failed to remove %s: %w", st.entry.path, err)
			}
			report.Removed = append(report.Removed, st.entry.path)
			continue
		}

		if err := os.Rename(st.tmp, st.abs); err != nil {
			return report, fmt.Errorf("failed to restore %s: %w", st.entry.path, err)
		}
		if st.entry.mode != 0 {
			_ = os.Chmod(st.abs, st.entry.mode)
		}
		report.Restored = append(report.Restored, st.entry.path)
	}

	log.Info().
		Str("checkpoint", checkpointID).
		Int("restored", len(report.Restored)).
		Int("removed", len(report.Removed)).
		Int("warnings", len(report.Warnings)).
		Msg("Checkpoint restored")

	return report, nil
}

func (s *Store) manifest(snapshotRef string) ([]manifestEntry, error) {
	rows, err := s.db.Query(
		`SELECT path, hash, mode, existed FROM manifests WHERE snapshot_ref = ? ORDER BY path`,
		snapshotRef,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	defer rows.Close()

	entries := []manifestEntry{}
	for rows.Next() {
		var e manifestEntry
		var mode uint32
		var existed int
		if err := rows.Scan(&e.path, &e.hash, &mode, &existed); err != nil {
			return nil, fmt.Errorf("failed to scan manifest: %w", err)
		}
		e.mode = os.FileMode(mode)
		e.existed = existed == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func stageFile(abs string, content []byte) (string, error) {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".steward-restore-*")
	if err != nil {
		return "", fmt.Errorf("failed to stage restore file: %w", err)
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write staged file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close staged file: %w", err)
	}

	return tmp.Name(), nil
}
