// Package tool defines the capability surface every tool exposes to the
// runtime: a descriptor registered at startup, schema-validated argument
// binding, and a bound invocation with describe/confirm/execute hooks.
//
// Invariants:
// - Tool names are unique; the ext__ prefix is reserved for external tools.
// - Arguments are schema-validated before a request can reach the policy
//   pipeline.
// - Every failure is expressed as a Fault with a distinguishable kind.
package tool
