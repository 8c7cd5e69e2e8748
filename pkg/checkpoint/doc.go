// Package checkpoint snapshots workspace files before restorable tool
// calls execute and restores them on explicit request.
//
// Invariants:
// - Snapshot creation is transactional with the call: if the snapshot
//   fails, the call must not execute.
// - Restore is never automatic; only an explicit request naming a prior
//   checkpoint applies one.
// - The write path is append-only and safe under concurrent writers keyed
//   by distinct call IDs.
package checkpoint
