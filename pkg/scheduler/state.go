package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle stage of one tool call. Exactly one state per
// call ID at any time.
type State string

const (
	StateValidating       State = "validating"
	StateAwaitingApproval State = "awaiting_approval"
	StateScheduled        State = "scheduled"
	StateExecuting        State = "executing"
	StateSuccess          State = "success"
	StateError            State = "error"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateError, StateCancelled:
		return true
	default:
		return false
	}
}

// validTransitions encodes the per-call state machine. Transitions are
// monotonic: a state is never revisited.
var validTransitions = map[State][]State{
	StateValidating:       {StateAwaitingApproval, StateScheduled, StateError, StateCancelled},
	StateAwaitingApproval: {StateScheduled, StateError, StateCancelled},
	StateScheduled:        {StateExecuting, StateError, StateCancelled},
	StateExecuting:        {StateSuccess, StateError, StateCancelled},
}

// tracker is the scheduler's only shared bookkeeping for one call: its
// state and its cancellation handle. All other state belongs to the
// owning invocation.
type tracker struct {
	mu     sync.Mutex
	callID string
	state  State
	cancel context.CancelFunc
}

func newTracker(callID string, cancel context.CancelFunc) *tracker {
	return &tracker{
		callID: callID,
		state:  StateValidating,
		cancel: cancel,
	}
}

// transition moves the call to a new state, rejecting anything the state
// machine does not permit. Once a terminal state is reached all further
// transitions fail.
func (t *tracker) transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, allowed := range validTransitions[t.state] {
		if allowed == to {
			t.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid transition for call %s: %s -> %s", t.callID, t.state, to)
}

// current returns the call's state.
func (t *tracker) current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// finish forces a terminal state if the call is not already terminal, and
// reports whether this call performed the transition. Concurrent
// finishers (answer vs timeout vs turn cancel) converge here.
func (t *tracker) finish(to State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() {
		return false
	}
	t.state = to
	return true
}
