package coretools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riven-labs/steward/pkg/tool"
)

// TestExec_RunsCommand tests basic command execution and output capture
func TestExec_RunsCommand(t *testing.T) {
	registry, _ := newTestRegistry(t)

	res := runHandler(t, registry, "exec", map[string]interface{}{"command": "echo hello"})
	require.Nil(t, res.Err)
	assert.Contains(t, res.LLMContent, "hello")
}

// TestExec_NonZeroExit tests that a failing command surfaces both the
// captured output and an execution fault
func TestExec_NonZeroExit(t *testing.T) {
	registry, _ := newTestRegistry(t)

	res := runHandler(t, registry, "exec", map[string]interface{}{
		"command": "echo oops >&2; exit 3",
	})
	require.NotNil(t, res.Err)
	assert.Equal(t, tool.FaultExecutionFailed, res.Err.Kind)
	assert.Contains(t, res.LLMContent, "oops")
}

// TestExec_EmptyCommand tests the empty-command guard
func TestExec_EmptyCommand(t *testing.T) {
	registry, _ := newTestRegistry(t)

	res := runHandler(t, registry, "exec", map[string]interface{}{"command": "   "})
	require.NotNil(t, res.Err)
}

// TestExec_Cancellation tests that a cancelled context stops the command
// and reports a cancellation fault
func TestExec_Cancellation(t *testing.T) {
	registry, _ := newTestRegistry(t)
	d, err := registry.Get("exec")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := d.Handler(ctx, map[string]interface{}{"command": "sleep 30"})
	require.NotNil(t, res.Err)
	assert.Equal(t, tool.FaultCancelled, res.Err.Kind)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// TestExec_ExclusiveSession tests that the shell tool declares the shared
// session resource
func TestExec_ExclusiveSession(t *testing.T) {
	registry, _ := newTestRegistry(t)
	d, err := registry.Get("exec")
	require.NoError(t, err)
	assert.Equal(t, "shell", d.Session)
	assert.Equal(t, tool.KindShell, d.Kind)
}

// TestExec_Confirm_IrreversibleIsNonSkippable tests the risk
// self-assessment for destructive commands
func TestExec_Confirm_IrreversibleIsNonSkippable(t *testing.T) {
	registry, _ := newTestRegistry(t)
	d, err := registry.Get("exec")
	require.NoError(t, err)

	details, err := d.Confirm(context.Background(), map[string]interface{}{
		"command": "git push --force origin main",
	})
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.True(t, details.NonSkippable)
	assert.NotEmpty(t, details.Warning)

	details, err = d.Confirm(context.Background(), map[string]interface{}{
		"command": "ls -la",
	})
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.False(t, details.NonSkippable)
}
