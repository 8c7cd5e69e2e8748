package tool

import (
	"context"
	"fmt"
)

// Invocation is a (descriptor, validated arguments) pair bound to one call
// request. The scheduler derives a per-call cancellation scope for it; the
// invocation itself holds no mutable state.
type Invocation struct {
	Descriptor *Descriptor
	CallID     string
	Args       map[string]interface{}
}

// Describe returns a one-line human-readable summary for audit logs and
// prompts.
func (inv *Invocation) Describe() string {
	if inv.Descriptor.Describe != nil {
		return inv.Descriptor.Describe(inv.Args)
	}
	return fmt.Sprintf("%s(%d args)", inv.Descriptor.Name, len(inv.Args))
}

// Confirmation runs the tool's risk self-assessment. A nil result means
// the tool does not ask for confirmation for these arguments.
func (inv *Invocation) Confirmation(ctx context.Context) (*ConfirmationDetails, error) {
	if inv.Descriptor.Confirm == nil {
		return nil, nil
	}
	return inv.Descriptor.Confirm(ctx, inv.Args)
}

// Execute performs the tool's effect. Panics are converted to
// ExecutionFailed faults so a misbehaving tool can never take down the
// scheduler.
func (inv *Invocation) Execute(ctx context.Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				LLMContent: fmt.Sprintf("tool %s panicked", inv.Descriptor.Name),
				Err:        NewFault(FaultExecutionFailed, "tool %s panicked: %v", inv.Descriptor.Name, r),
			}
		}
	}()

	return inv.Descriptor.Handler(ctx, inv.Args)
}

// MutatedPaths returns the workspace paths this invocation will touch, or
// nil for tools that do not declare any.
func (inv *Invocation) MutatedPaths() []string {
	if inv.Descriptor.Paths == nil {
		return nil
	}
	return inv.Descriptor.Paths(inv.Args)
}

// Mutating reports whether this invocation can change workspace or
// external state.
func (inv *Invocation) Mutating() bool {
	return inv.Descriptor.Kind.Mutating()
}

// ErrorResult builds a Result carrying a fault, with user-facing display
// text derived from the fault kind.
func ErrorResult(f *Fault) Result {
	return Result{
		LLMContent:     f.Error(),
		DisplayContent: f.UserFacing(),
		Err:            f,
	}
}
