// Package confirm transports approval questions and answers between the
// scheduler and whatever answers them: an interactive operator over
// websocket or Telegram, or an automated responder.
//
// Invariants:
// - At most one outstanding question per call ID; a duplicate is a
//   programming error and is surfaced, never silently overwritten.
// - The bus itself never times out; deadlines belong to the asker.
// - Cancelling a pending question withdraws it from every forwarder.
package confirm
