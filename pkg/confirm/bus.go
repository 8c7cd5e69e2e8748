package confirm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrDuplicatePending is returned when a second question is posted for
	// a call ID whose first question has not been answered.
	ErrDuplicatePending = errors.New("a question is already pending for this call")

	// ErrNoPending is returned when an answer arrives for a call ID with
	// no outstanding question.
	ErrNoPending = errors.New("no pending question for this call")
)

// Pending is a posted question together with the channel its answer will
// arrive on. The channel is buffered so a resolver never blocks.
type Pending struct {
	Question Question
	AnswerCh <-chan Answer
}

type pendingEntry struct {
	question Question
	answerCh chan Answer
}

// Bus is the in-process confirmation channel: the scheduler posts
// questions keyed by call ID, forwarders subscribe and relay them, exactly
// one answer resolves each question.
type Bus struct {
	mu          sync.Mutex
	pending     map[string]*pendingEntry
	subscribers map[int]chan Event
	nextSub     int
}

// NewBus creates an empty confirmation bus.
func NewBus() *Bus {
	return &Bus{
		pending:     make(map[string]*pendingEntry),
		subscribers: make(map[int]chan Event),
	}
}

// Post registers a question and broadcasts it to subscribers. Posting is
// synchronous so callers control presentation order; waiting for the
// answer happens on the returned Pending.
func (b *Bus) Post(q Question) (*Pending, error) {
	if q.CallID == "" {
		return nil, fmt.Errorf("question has no call ID")
	}

	b.mu.Lock()
	if _, exists := b.pending[q.CallID]; exists {
		b.mu.Unlock()
		log.Error().Str("callId", q.CallID).Msg("Duplicate pending question")
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePending, q.CallID)
	}

	entry := &pendingEntry{
		question: q,
		answerCh: make(chan Answer, 1),
	}
	b.pending[q.CallID] = entry
	b.mu.Unlock()

	b.broadcast(Event{Type: "request", CallID: q.CallID, Question: &q})

	log.Debug().
		Str("callId", q.CallID).
		Str("kind", string(q.Kind)).
		Msg("Confirmation question posted")

	return &Pending{Question: q, AnswerCh: entry.answerCh}, nil
}

// Ask posts a question and blocks until it is answered or ctx is done. On
// cancellation the question is withdrawn before returning.
func (b *Bus) Ask(ctx context.Context, q Question) (Answer, error) {
	pending, err := b.Post(q)
	if err != nil {
		return Answer{}, err
	}

	select {
	case ans := <-pending.AnswerCh:
		return ans, nil
	case <-ctx.Done():
		b.Withdraw(q.CallID)
		return Answer{}, ctx.Err()
	}
}

// Resolve fulfils the pending question for a call ID.
func (b *Bus) Resolve(callID string, ans Answer) error {
	b.mu.Lock()
	entry, exists := b.pending[callID]
	if exists {
		delete(b.pending, callID)
	}
	b.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrNoPending, callID)
	}

	ans.CallID = callID
	entry.answerCh <- ans

	log.Debug().
		Str("callId", callID).
		Bool("approved", ans.Approved).
		Str("actor", ans.Actor).
		Msg("Confirmation question resolved")

	return nil
}

// Withdraw removes a pending question without answering it and tells
// forwarders to drop it. Withdrawing an already-resolved question is a
// no-op.
func (b *Bus) Withdraw(callID string) {
	b.mu.Lock()
	_, exists := b.pending[callID]
	if exists {
		delete(b.pending, callID)
	}
	b.mu.Unlock()

	if exists {
		b.broadcast(Event{Type: "withdraw", CallID: callID})
		log.Debug().Str("callId", callID).Msg("Confirmation question withdrawn")
	}
}

// Pending returns a snapshot of the open questions, for forwarders that
// connect after questions were posted.
func (b *Bus) Pending() []Question {
	b.mu.Lock()
	defer b.mu.Unlock()

	questions := make([]Question, 0, len(b.pending))
	for _, entry := range b.pending {
		questions = append(questions, entry.question)
	}
	return questions
}

// Subscribe returns a channel of bus events and an unsubscribe function.
// Slow subscribers drop events rather than block the bus.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	ch := make(chan Event, 64)
	b.subscribers[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

func (b *Bus) broadcast(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.Warn().Int("subscriber", id).Msg("Dropping confirmation event for slow subscriber")
		}
	}
}
