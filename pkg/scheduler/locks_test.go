package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPathsOverlap tests equality, containment and the separator boundary
func TestPathsOverlap(t *testing.T) {
	tests := []struct {
		a, b    string
		overlap bool
	}{
		{"a/b", "a/b", true},
		{"a/b", "a/b/c", true},
		{"a/b/c", "a/b", true},
		{"a/b", "a/bc", false},
		{"a/bc", "a/b", false},
		{"a/b", "a/c", false},
		{"a", "a/b/c", true},
		{"x/y", "z/y", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.overlap, pathsOverlap(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

// TestLockManager_DisjointPathsDoNotBlock tests that non-overlapping
// claims are granted immediately
func TestLockManager_DisjointPathsDoNotBlock(t *testing.T) {
	lm := newLockManager()
	ctx := context.Background()

	require.NoError(t, lm.acquire(ctx, "c1", []string{"a/b"}, ""))
	require.NoError(t, lm.acquire(ctx, "c2", []string{"a/c"}, ""))

	lm.release("c1")
	lm.release("c2")
}

// TestLockManager_OverlappingPathsSerialize tests that a contained path
// waits for its holder to release
func TestLockManager_OverlappingPathsSerialize(t *testing.T) {
	lm := newLockManager()
	ctx := context.Background()

	require.NoError(t, lm.acquire(ctx, "c1", []string{"a/b"}, ""))

	acquired := make(chan struct{})
	go func() {
		if err := lm.acquire(ctx, "c2", []string{"a/b/nested.txt"}, ""); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("overlapping claim granted while held")
	case <-time.After(100 * time.Millisecond):
	}

	lm.release("c1")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("claim not granted after release")
	}
	lm.release("c2")
}

// TestLockManager_SessionExclusive tests that a named session admits one
// holder at a time
func TestLockManager_SessionExclusive(t *testing.T) {
	lm := newLockManager()
	ctx := context.Background()

	require.NoError(t, lm.acquire(ctx, "c1", nil, "shell"))

	acquired := make(chan struct{})
	go func() {
		if err := lm.acquire(ctx, "c2", nil, "shell"); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("exclusive session granted twice")
	case <-time.After(100 * time.Millisecond):
	}

	lm.release("c1")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("session not granted after release")
	}
}

// TestLockManager_AcquireCancelled tests that a waiter honors context
// cancellation
func TestLockManager_AcquireCancelled(t *testing.T) {
	lm := newLockManager()
	require.NoError(t, lm.acquire(context.Background(), "c1", []string{"a"}, ""))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- lm.acquire(ctx, "c2", []string{"a"}, "")
	}()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("acquire did not return on cancellation")
	}
}
