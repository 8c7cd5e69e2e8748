package confirm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBus_PostResolve tests the basic post-then-resolve round trip
func TestBus_PostResolve(t *testing.T) {
	bus := NewBus()

	pending, err := bus.Post(Question{CallID: "c1", Kind: QuestionApprove, Prompt: "run it?"})
	require.NoError(t, err)

	require.NoError(t, bus.Resolve("c1", Answer{Approved: true, Actor: "tester"}))

	select {
	case ans := <-pending.AnswerCh:
		assert.True(t, ans.Approved)
		assert.Equal(t, "c1", ans.CallID)
		assert.Equal(t, "tester", ans.Actor)
	case <-time.After(time.Second):
		t.Fatal("answer never arrived")
	}

	assert.Empty(t, bus.Pending())
}

// TestBus_Post_RequiresCallID tests that an anonymous question is rejected
func TestBus_Post_RequiresCallID(t *testing.T) {
	bus := NewBus()
	_, err := bus.Post(Question{Kind: QuestionApprove})
	assert.Error(t, err)
}

// TestBus_Post_DuplicatePending tests that a second question for the same
// call is refused while the first is open
func TestBus_Post_DuplicatePending(t *testing.T) {
	bus := NewBus()

	_, err := bus.Post(Question{CallID: "c1", Kind: QuestionApprove})
	require.NoError(t, err)

	_, err = bus.Post(Question{CallID: "c1", Kind: QuestionApprove})
	assert.ErrorIs(t, err, ErrDuplicatePending)

	// After resolution the call ID is free again
	require.NoError(t, bus.Resolve("c1", Answer{Approved: false}))
	_, err = bus.Post(Question{CallID: "c1", Kind: QuestionApprove})
	assert.NoError(t, err)
}

// TestBus_Resolve_NoPending tests answering a question that does not exist
func TestBus_Resolve_NoPending(t *testing.T) {
	bus := NewBus()
	err := bus.Resolve("ghost", Answer{Approved: true})
	assert.ErrorIs(t, err, ErrNoPending)
}

// TestBus_Resolve_SecondAnswerRejected tests exactly-one-answer semantics
func TestBus_Resolve_SecondAnswerRejected(t *testing.T) {
	bus := NewBus()

	_, err := bus.Post(Question{CallID: "c1", Kind: QuestionApprove})
	require.NoError(t, err)

	require.NoError(t, bus.Resolve("c1", Answer{Approved: true}))
	assert.ErrorIs(t, bus.Resolve("c1", Answer{Approved: false}), ErrNoPending)
}

// TestBus_Withdraw tests that a withdrawn question stops being pending and
// that late answers for it are rejected
func TestBus_Withdraw(t *testing.T) {
	bus := NewBus()

	_, err := bus.Post(Question{CallID: "c1", Kind: QuestionApprove})
	require.NoError(t, err)

	bus.Withdraw("c1")
	assert.Empty(t, bus.Pending())
	assert.ErrorIs(t, bus.Resolve("c1", Answer{Approved: true}), ErrNoPending)

	// Withdrawing again is a no-op
	bus.Withdraw("c1")
}

// TestBus_Ask_Cancelled tests that Ask withdraws its question when the
// context is cancelled
func TestBus_Ask_Cancelled(t *testing.T) {
	bus := NewBus()

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := bus.Ask(ctx, Question{CallID: "c1", Kind: QuestionApprove})
		errCh <- err
	}()

	// Wait for the question to appear, then cancel
	require.Eventually(t, func() bool { return len(bus.Pending()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Ask never returned")
	}
	assert.Empty(t, bus.Pending())
}

// TestBus_Subscribe_ReceivesLifecycle tests that subscribers see request,
// answer resolution and withdrawal events
func TestBus_Subscribe_ReceivesLifecycle(t *testing.T) {
	bus := NewBus()

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	_, err := bus.Post(Question{CallID: "c1", Kind: QuestionApprove, Prompt: "ok?"})
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, "request", event.Type)
		assert.Equal(t, "c1", event.CallID)
		require.NotNil(t, event.Question)
		assert.Equal(t, "ok?", event.Question.Prompt)
	case <-time.After(time.Second):
		t.Fatal("request event never arrived")
	}

	_, err = bus.Post(Question{CallID: "c2", Kind: QuestionApprove})
	require.NoError(t, err)
	<-events // c2 request

	bus.Withdraw("c2")
	select {
	case event := <-events:
		assert.Equal(t, "withdraw", event.Type)
		assert.Equal(t, "c2", event.CallID)
	case <-time.After(time.Second):
		t.Fatal("withdraw event never arrived")
	}
}

// TestBus_Subscribe_Unsubscribe tests that unsubscribing closes the channel
func TestBus_Subscribe_Unsubscribe(t *testing.T) {
	bus := NewBus()

	events, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)

	// Double unsubscribe is safe
	unsubscribe()
}

// TestAutoResponder_ApproveAll tests the automated approval loop
func TestAutoResponder_ApproveAll(t *testing.T) {
	bus := NewBus()

	responder := NewAutoResponder(bus, ApproveAll)
	defer responder.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ans, err := bus.Ask(ctx, Question{CallID: "c1", Kind: QuestionApprove})
	require.NoError(t, err)
	assert.True(t, ans.Approved)
	assert.Equal(t, "auto", ans.Actor)
}

// TestAutoResponder_DenyAll tests the automated denial loop
func TestAutoResponder_DenyAll(t *testing.T) {
	bus := NewBus()

	responder := NewAutoResponder(bus, DenyAll)
	defer responder.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ans, err := bus.Ask(ctx, Question{CallID: "c1", Kind: QuestionApprove})
	require.NoError(t, err)
	assert.False(t, ans.Approved)
}
