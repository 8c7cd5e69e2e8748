package tool

import "fmt"

// FaultKind classifies a tool call failure so callers can react differently
// to each class (retry with new arguments, accept a denial, flag tool
// misbehavior).
type FaultKind string

const (
	FaultValidationFailed  FaultKind = "validation_failed"
	FaultPolicyDenied      FaultKind = "policy_denied"
	FaultApprovalTimeout   FaultKind = "approval_timeout"
	FaultExecutionFailed   FaultKind = "execution_failed"
	FaultCheckpointFailed  FaultKind = "checkpoint_failed"
	FaultForcedTermination FaultKind = "forced_termination"
	FaultCancelled         FaultKind = "cancelled"
)

// Fault is a classified tool call failure. It is the only error shape that
// leaves the scheduler; no fault may crash the run loop.
type Fault struct {
	Kind    FaultKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewFault creates a fault with a formatted message.
func NewFault(kind FaultKind, format string, args ...interface{}) *Fault {
	return &Fault{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Declined reports whether the fault represents an intentional refusal
// (policy or operator) rather than a malfunction.
func (f *Fault) Declined() bool {
	return f.Kind == FaultPolicyDenied
}

// UserFacing returns text for the operator that distinguishes refusals
// from breakage.
func (f *Fault) UserFacing() string {
	switch f.Kind {
	case FaultPolicyDenied:
		return fmt.Sprintf("Declined: %s", f.Message)
	case FaultApprovalTimeout:
		return fmt.Sprintf("Approval timed out: %s", f.Message)
	case FaultCancelled:
		return fmt.Sprintf("Cancelled: %s", f.Message)
	case FaultForcedTermination:
		return fmt.Sprintf("Tool failed to stop and was terminated: %s", f.Message)
	default:
		return fmt.Sprintf("Failed: %s", f.Message)
	}
}
