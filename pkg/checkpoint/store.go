package checkpoint

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Checkpoint records one pre-execution snapshot, keyed by the call that
// triggered it.
type Checkpoint struct {
	ID          string    `json:"id"`
	CallID      string    `json:"call_id"`
	SnapshotRef string    `json:"snapshot_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// Entry pairs a checkpoint with the conversation message it belongs to,
// for display and restore selection.
type Entry struct {
	MessageID  string     `json:"message_id"`
	Checkpoint Checkpoint `json:"checkpoint"`
}

// Store is a content-addressed snapshot store backed by sqlite. File
// contents are deduplicated by sha256; checkpoint and manifest rows are
// append-only.
type Store struct {
	db   *sql.DB
	root string
}

// Open opens (or creates) a checkpoint store. Paths in snapshots are
// stored relative to root.
func Open(dbPath string, root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	// WAL keeps concurrent snapshot writers from blocking each other.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, root: root}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("db", dbPath).Str("root", root).Msg("Checkpoint store opened")

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id           TEXT PRIMARY KEY,
		call_id      TEXT NOT NULL,
		message_id   TEXT NOT NULL DEFAULT '',
		snapshot_ref TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_call ON checkpoints(call_id);

	CREATE TABLE IF NOT EXISTS blobs (
		hash    TEXT PRIMARY KEY,
		content BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS manifests (
		snapshot_ref TEXT NOT NULL,
		path         TEXT NOT NULL,
		hash         TEXT NOT NULL DEFAULT '',
		mode         INTEGER NOT NULL DEFAULT 0,
		existed      INTEGER NOT NULL,
		PRIMARY KEY (snapshot_ref, path)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize checkpoint schema: %w", err)
	}
	return nil
}

// Snapshot captures the current contents of the given workspace paths
// under a new checkpoint for callID. Missing files are recorded as absent
// so a restore can delete what the call created. Any failure aborts the
// whole snapshot; the caller must then refuse to execute the call.
func (s *Store) Snapshot(callID string, messageID string, paths []string) (*Checkpoint, error) {
	if callID == "" {
		return nil, fmt.Errorf("call ID is required")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("snapshot needs at least one path")
	}

	cp := &Checkpoint{
		ID:          uuid.NewString(),
		CallID:      callID,
		SnapshotRef: uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, path := range paths {
		rel, err := s.relative(path)
		if err != nil {
			return nil, err
		}

		abs := filepath.Join(s.root, rel)
		content, statErr := os.ReadFile(abs)
		if statErr != nil {
			if !os.IsNotExist(statErr) {
				return nil, fmt.Errorf("failed to read %s: %w", rel, statErr)
			}
			// Absent at snapshot time.
			_, err = tx.Exec(
				`INSERT INTO manifests (snapshot_ref, path, existed) VALUES (?, ?, 0)`,
				cp.SnapshotRef, rel,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to record manifest for %s: %w", rel, err)
			}
			continue
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
		}

		hash := hashBytes(content)
		_, err = tx.Exec(
			`INSERT OR IGNORE INTO blobs (hash, content) VALUES (?, ?)`,
			hash, content,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to store blob for %s: %w", rel, err)
		}

		_, err = tx.Exec(
			`INSERT INTO manifests (snapshot_ref, path, hash, mode, existed) VALUES (?, ?, ?, ?, 1)`,
			cp.SnapshotRef, rel, hash, uint32(info.Mode().Perm()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record manifest for %s: %w", rel, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO checkpoints (id, call_id, message_id, snapshot_ref, created_at) VALUES (?, ?, ?, ?, ?)`,
		cp.ID, cp.CallID, messageID, cp.SnapshotRef, cp.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	log.Debug().
		Str("checkpoint", cp.ID).
		Str("callId", callID).
		Int("paths", len(paths)).
		Msg("Checkpoint created")

	return cp, nil
}

// Get returns a checkpoint by ID.
func (s *Store) Get(id string) (*Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT id, call_id, snapshot_ref, created_at FROM checkpoints WHERE id = ?`, id,
	)

	cp := &Checkpoint{}
	if err := row.Scan(&cp.ID, &cp.CallID, &cp.SnapshotRef, &cp.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("checkpoint not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// List returns all checkpoints paired with their message IDs, newest
// first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, call_id, message_id, snapshot_ref, created_at FROM checkpoints ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Checkpoint.ID, &e.Checkpoint.CallID, &e.MessageID, &e.Checkpoint.SnapshotRef, &e.Checkpoint.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes checkpoints created before the cutoff and returns how many
// were removed. Orphaned blobs are left for sqlite to reuse; correctness
// only needs the checkpoint rows gone.
func (s *Store) Prune(olderThan time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM checkpoints WHERE created_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune checkpoints: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Info().Int64("pruned", n).Time("cutoff", olderThan).Msg("Checkpoints pruned")
	}
	return int(n), nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("path %s is outside the workspace root", path)
	}
	return rel, nil
}

func hashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
