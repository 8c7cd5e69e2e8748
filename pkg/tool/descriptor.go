package tool

import (
	"context"
	"encoding/json"
)

// Kind classifies what a tool touches. It drives the approval-mode
// defaults and the scheduler's concurrency policy.
type Kind string

const (
	KindRead    Kind = "read"
	KindEdit    Kind = "edit"
	KindShell   Kind = "shell"
	KindNetwork Kind = "network"
	KindMedia   Kind = "media"
	KindThink   Kind = "think"
)

// AllKinds returns all valid tool kinds.
func AllKinds() []Kind {
	return []Kind{KindRead, KindEdit, KindShell, KindNetwork, KindMedia, KindThink}
}

// Mutating reports whether the kind can change workspace or external state.
func (k Kind) Mutating() bool {
	switch k {
	case KindEdit, KindShell, KindMedia:
		return true
	default:
		return false
	}
}

// CallRequest is one function-call request emitted by the model. Immutable
// once constructed; the runtime only reads it.
type CallRequest struct {
	CallID       string          `json:"call_id"`
	Name         string          `json:"tool_name"`
	RawArguments json.RawMessage `json:"arguments"`
}

// Result is the terminal artifact of a tool call, fed back into the
// conversation. LLMContent goes to the model, DisplayContent to the
// operator. A partial mutation must be reported through Err, never left
// implicit.
type Result struct {
	LLMContent     string `json:"llm_content"`
	DisplayContent string `json:"display_content,omitempty"`
	Err            *Fault `json:"error,omitempty"`
}

// ConfirmationDetails is a tool's own risk self-assessment for one bound
// invocation. NonSkippable marks irreversible-destructive actions whose
// prompt survives even a policy Allow.
type ConfirmationDetails struct {
	Summary      string `json:"summary"`
	Warning      string `json:"warning,omitempty"`
	NonSkippable bool   `json:"non_skippable,omitempty"`
}

// HandlerFunc performs the tool's effect. It must observe ctx cancellation
// promptly.
type HandlerFunc func(ctx context.Context, args map[string]interface{}) Result

// ConfirmFunc is the tool's risk self-assessment hook. Returning nil means
// the tool does not request confirmation for these arguments.
type ConfirmFunc func(ctx context.Context, args map[string]interface{}) (*ConfirmationDetails, error)

// DescribeFunc renders a one-line human-readable summary of an invocation
// for audit logs and prompts.
type DescribeFunc func(args map[string]interface{}) string

// PathsFunc reports the workspace paths an invocation will mutate; the
// scheduler serializes overlapping paths and the checkpoint store
// snapshots them.
type PathsFunc func(args map[string]interface{}) []string

// Descriptor is the registered, read-only definition of a tool.
type Descriptor struct {
	Name        string                 `json:"name"`
	DisplayName string                 `json:"display_name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"parameter_schema"`
	Kind        Kind                   `json:"kind"`

	// Session names one exclusive logical resource (e.g. "shell") that at
	// most one executing invocation may hold.
	Session string `json:"session,omitempty"`

	// Restorable marks the tool for pre-execution checkpointing.
	Restorable bool `json:"restorable,omitempty"`

	Handler  HandlerFunc  `json:"-"`
	Confirm  ConfirmFunc  `json:"-"`
	Describe DescribeFunc `json:"-"`
	Paths    PathsFunc    `json:"-"`
}
