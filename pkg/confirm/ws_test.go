package confirm

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialForwarder(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

// TestWSForwarder_RelaysQuestion tests that a posted question reaches a
// connected websocket client
func TestWSForwarder_RelaysQuestion(t *testing.T) {
	bus := NewBus()
	forwarder := NewWSForwarder(bus)
	defer forwarder.Close()

	server := httptest.NewServer(forwarder)
	defer server.Close()

	conn := dialForwarder(t, server)
	defer conn.Close()

	// Give the subscription time to register before posting
	time.Sleep(100 * time.Millisecond)

	_, err := bus.Post(Question{CallID: "c1", Kind: QuestionApprove, Prompt: "deploy?"})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))

	assert.Equal(t, "request", event.Type)
	assert.Equal(t, "c1", event.CallID)
	require.NotNil(t, event.Question)
	assert.Equal(t, "deploy?", event.Question.Prompt)
}

// TestWSForwarder_ReplaysPendingOnConnect tests that a client connecting
// late still sees open questions
func TestWSForwarder_ReplaysPendingOnConnect(t *testing.T) {
	bus := NewBus()
	forwarder := NewWSForwarder(bus)
	defer forwarder.Close()

	_, err := bus.Post(Question{CallID: "early", Kind: QuestionApprove, Prompt: "still here?"})
	require.NoError(t, err)

	server := httptest.NewServer(forwarder)
	defer server.Close()

	conn := dialForwarder(t, server)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))

	assert.Equal(t, "request", event.Type)
	assert.Equal(t, "early", event.CallID)
}

// TestWSForwarder_AnswerResolvesQuestion tests the client-to-bus direction
func TestWSForwarder_AnswerResolvesQuestion(t *testing.T) {
	bus := NewBus()
	forwarder := NewWSForwarder(bus)
	defer forwarder.Close()

	server := httptest.NewServer(forwarder)
	defer server.Close()

	conn := dialForwarder(t, server)
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	pending, err := bus.Post(Question{CallID: "c1", Kind: QuestionApprove, Prompt: "ok?"})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "request", event.Type)

	answer := Event{
		Type:   "answer",
		CallID: "c1",
		Answer: &Answer{Approved: true, Actor: "ws-tester"},
	}
	require.NoError(t, conn.WriteJSON(answer))

	select {
	case ans := <-pending.AnswerCh:
		assert.True(t, ans.Approved)
		assert.Equal(t, "ws-tester", ans.Actor)
	case <-time.After(2 * time.Second):
		t.Fatal("answer never reached the bus")
	}
}
