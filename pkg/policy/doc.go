// Package policy decides whether a tool call may run, must be denied, or
// needs operator confirmation.
//
// Invariants:
// - Decide is deterministic and side-effect-free: the same call, mode and
//   rule snapshot always produce the same decision.
// - Explicit deny rules win regardless of approval mode.
// - plan mode never prompts: mutating calls are denied outright.
package policy
