package confirm

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// AnswerFunc decides how an AutoResponder answers a question.
type AnswerFunc func(q Question) Answer

// AutoResponder answers questions without an operator, for automated
// harnesses and tests.
type AutoResponder struct {
	bus      *Bus
	answer   AnswerFunc
	done     chan struct{}
	stopOnce sync.Once
}

// ApproveAll answers every question positively.
func ApproveAll(q Question) Answer {
	return Answer{Approved: true, Reason: "auto-approved", Actor: "auto"}
}

// DenyAll answers every question negatively.
func DenyAll(q Question) Answer {
	return Answer{Approved: false, Reason: "auto-denied", Actor: "auto"}
}

// NewAutoResponder creates a responder and starts answering bus questions.
func NewAutoResponder(bus *Bus, answer AnswerFunc) *AutoResponder {
	ar := &AutoResponder{
		bus:    bus,
		answer: answer,
		done:   make(chan struct{}),
	}

	events, unsubscribe := bus.Subscribe()

	go func() {
		defer unsubscribe()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.Type != "request" || event.Question == nil {
					continue
				}
				if err := bus.Resolve(event.CallID, ar.answer(*event.Question)); err != nil {
					log.Debug().Err(err).Str("callId", event.CallID).Msg("Auto answer raced with resolution")
				}
			case <-ar.done:
				return
			}
		}
	}()

	return ar
}

// Stop stops the responder.
func (ar *AutoResponder) Stop() {
	ar.stopOnce.Do(func() { close(ar.done) })
}
