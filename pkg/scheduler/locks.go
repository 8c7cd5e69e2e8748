package scheduler

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

// lockManager bounds concurrent mutating calls: path claims conflict on
// overlap (equal, containing or contained paths), and each named session
// is one exclusive resource. Read-only calls never come here.
type lockManager struct {
	mu       sync.Mutex
	paths    map[string][]string // callID -> held path claims
	sessions map[string]string   // session name -> holder callID
	changed  chan struct{}
}

func newLockManager() *lockManager {
	return &lockManager{
		paths:    make(map[string][]string),
		sessions: make(map[string]string),
		changed:  make(chan struct{}),
	}
}

// acquire blocks until every requested path is free of overlapping claims
// and the session (if any) is unheld, then takes them atomically.
// Contenders queue on the change signal, so a same-path successor starts
// only after its predecessor releases.
func (lm *lockManager) acquire(ctx context.Context, callID string, paths []string, session string) error {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, filepath.Clean(p))
	}

	for {
		lm.mu.Lock()
		if lm.free(cleaned, session) {
			if len(cleaned) > 0 {
				lm.paths[callID] = cleaned
			}
			if session != "" {
				lm.sessions[session] = callID
			}
			lm.mu.Unlock()
			return nil
		}
		wait := lm.changed
		lm.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// release drops every claim held by the call and wakes all waiters.
func (lm *lockManager) release(callID string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	delete(lm.paths, callID)
	for name, holder := range lm.sessions {
		if holder == callID {
			delete(lm.sessions, name)
		}
	}

	close(lm.changed)
	lm.changed = make(chan struct{})
}

func (lm *lockManager) free(paths []string, session string) bool {
	if session != "" {
		if _, held := lm.sessions[session]; held {
			return false
		}
	}

	for _, want := range paths {
		for _, held := range lm.paths {
			for _, have := range held {
				if pathsOverlap(want, have) {
					return false
				}
			}
		}
	}
	return true
}

// pathsOverlap reports whether two cleaned paths are equal or one contains
// the other, tested on separator boundaries so "a/bc" does not overlap
// "a/b".
func pathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}
