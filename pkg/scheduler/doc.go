// Package scheduler coordinates the tool calls of one conversational
// turn: validation, policy and confirmation gating, checkpointing,
// bounded-concurrency execution and ordered result collection.
//
// Invariants:
// - No invocation executes while awaiting approval.
// - States transition monotonically; terminal states are final.
// - Results leave the scheduler in original request order.
// - Scheduler liveness never depends on a tool's cooperation: a call that
//   ignores cancellation is force-marked after a grace period.
package scheduler
