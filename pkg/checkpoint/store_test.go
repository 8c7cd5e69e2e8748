package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"), root)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, root
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

// TestStore_SnapshotRestore_RoundTrip tests that restoring a checkpoint
// brings files back to their snapshotted content
func TestStore_SnapshotRestore_RoundTrip(t *testing.T) {
	store, root := newTestStore(t)

	writeFile(t, root, "a.txt", "original a")
	writeFile(t, root, "sub/b.txt", "original b")

	cp, err := store.Snapshot("call-1", "msg-1", []string{"a.txt", "sub/b.txt"})
	require.NoError(t, err)
	require.NotEmpty(t, cp.ID)

	// Mutate both files after the snapshot
	writeFile(t, root, "a.txt", "clobbered")
	writeFile(t, root, "sub/b.txt", "clobbered too")

	report, err := store.Restore(context.Background(), cp.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", filepath.Join("sub", "b.txt")}, report.Restored)
	assert.Empty(t, report.Removed)

	got, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original a", string(got))

	got, err = os.ReadFile(filepath.Join(root, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original b", string(got))
}

// TestStore_Restore_RemovesCreatedFiles tests that files absent at
// snapshot time are deleted by the restore
func TestStore_Restore_RemovesCreatedFiles(t *testing.T) {
	store, root := newTestStore(t)

	cp, err := store.Snapshot("call-1", "msg-1", []string{"new.txt"})
	require.NoError(t, err)

	// The call then creates the file
	writeFile(t, root, "new.txt", "created by the call")

	report, err := store.Restore(context.Background(), cp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"new.txt"}, report.Removed)

	_, statErr := os.Stat(filepath.Join(root, "new.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

// TestStore_Restore_WarnsOnExternalModification tests the drift warning
// for files changed after the snapshot
func TestStore_Restore_WarnsOnExternalModification(t *testing.T) {
	store, root := newTestStore(t)

	writeFile(t, root, "a.txt", "v1")
	cp, err := store.Snapshot("call-1", "msg-1", []string{"a.txt"})
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "edited by someone else")

	report, err := store.Restore(context.Background(), cp.ID)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "a.txt")

	got, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

// TestStore_Snapshot_Validation tests the snapshot precondition errors
func TestStore_Snapshot_Validation(t *testing.T) {
	store, root := newTestStore(t)
	writeFile(t, root, "a.txt", "x")

	_, err := store.Snapshot("", "msg", []string{"a.txt"})
	assert.Error(t, err)

	_, err = store.Snapshot("call-1", "msg", nil)
	assert.Error(t, err)
}

// TestStore_Snapshot_RejectsEscapingPaths tests workspace confinement
func TestStore_Snapshot_RejectsEscapingPaths(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Snapshot("call-1", "msg", []string{"/etc/passwd"})
	assert.Error(t, err)
}

// TestStore_GetList tests lookup and listing
func TestStore_GetList(t *testing.T) {
	store, root := newTestStore(t)
	writeFile(t, root, "a.txt", "x")

	cp1, err := store.Snapshot("call-1", "msg-1", []string{"a.txt"})
	require.NoError(t, err)
	cp2, err := store.Snapshot("call-2", "msg-2", []string{"a.txt"})
	require.NoError(t, err)

	got, err := store.Get(cp1.ID)
	require.NoError(t, err)
	assert.Equal(t, "call-1", got.CallID)

	_, err = store.Get("missing")
	assert.Error(t, err)

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ids := []string{entries[0].Checkpoint.ID, entries[1].Checkpoint.ID}
	assert.Contains(t, ids, cp1.ID)
	assert.Contains(t, ids, cp2.ID)
	assert.Contains(t, []string{"msg-1", "msg-2"}, entries[0].MessageID)
}

// TestStore_Prune tests retention-based deletion
func TestStore_Prune(t *testing.T) {
	store, root := newTestStore(t)
	writeFile(t, root, "a.txt", "x")

	cp, err := store.Snapshot("call-1", "msg-1", []string{"a.txt"})
	require.NoError(t, err)

	// Cutoff in the past keeps everything
	n, err := store.Prune(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Cutoff in the future removes it
	n, err = store.Prune(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(cp.ID)
	assert.Error(t, err)
}

// TestStore_Snapshot_DeduplicatesBlobs tests that identical contents share
// one blob row
func TestStore_Snapshot_DeduplicatesBlobs(t *testing.T) {
	store, root := newTestStore(t)

	writeFile(t, root, "a.txt", "same content")
	writeFile(t, root, "b.txt", "same content")

	_, err := store.Snapshot("call-1", "msg-1", []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	_, err = store.Snapshot("call-2", "msg-1", []string{"a.txt"})
	require.NoError(t, err)

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM blobs`).Scan(&count))
	assert.Equal(t, 1, count)
}

// TestSweeper_PrunesOldCheckpoints tests the cron-driven retention sweep
// wiring by invoking the sweep directly
func TestSweeper_PrunesOldCheckpoints(t *testing.T) {
	store, root := newTestStore(t)
	writeFile(t, root, "a.txt", "x")

	_, err := store.Snapshot("call-1", "msg-1", []string{"a.txt"})
	require.NoError(t, err)

	sweeper, err := NewSweeper(store, "@hourly", time.Nanosecond)
	require.NoError(t, err)
	defer sweeper.Stop()

	time.Sleep(10 * time.Millisecond)
	sweeper.sweep()

	entries, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestNewSweeper_InvalidSchedule tests schedule validation
func TestNewSweeper_InvalidSchedule(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := NewSweeper(store, "not a cron expr", time.Hour)
	assert.Error(t, err)
}
