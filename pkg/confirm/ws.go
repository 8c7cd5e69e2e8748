package confirm

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSForwarder serves the confirmation channel over websocket. Each
// connected client receives every open question as a "request" event and
// may send "answer" events back.
type WSForwarder struct {
	bus      *Bus
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWSForwarder creates a websocket forwarder bound to the bus.
func NewWSForwarder(bus *Bus) *WSForwarder {
	return &WSForwarder{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and relays bus traffic until the client
// disconnects.
func (f *WSForwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	f.mu.Lock()
	f.conns[conn] = struct{}{}
	f.mu.Unlock()

	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Confirmation client connected")

	events, unsubscribe := f.bus.Subscribe()

	// Replay questions that were posted before this client connected.
	for _, q := range f.bus.Pending() {
		question := q
		f.write(conn, Event{Type: "request", CallID: q.CallID, Question: &question})
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			var event Event
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			if event.Type != "answer" || event.Answer == nil {
				continue
			}
			if event.Answer.Actor == "" {
				event.Answer.Actor = conn.RemoteAddr().String()
			}
			if err := f.bus.Resolve(event.CallID, *event.Answer); err != nil {
				log.Warn().Err(err).Str("callId", event.CallID).Msg("Answer for unknown question")
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				f.drop(conn, unsubscribe)
				return
			}
			if err := f.write(conn, event); err != nil {
				f.drop(conn, unsubscribe)
				return
			}
		case <-done:
			f.drop(conn, unsubscribe)
			return
		}
	}
}

func (f *WSForwarder) write(conn *websocket.Conn, event Event) error {
	if err := conn.WriteJSON(event); err != nil {
		log.Debug().Err(err).Msg("Websocket write failed")
		return err
	}
	return nil
}

func (f *WSForwarder) drop(conn *websocket.Conn, unsubscribe func()) {
	unsubscribe()
	conn.Close()

	f.mu.Lock()
	delete(f.conns, conn)
	f.mu.Unlock()

	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Confirmation client disconnected")
}

// Close disconnects all clients.
func (f *WSForwarder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for conn := range f.conns {
		conn.Close()
		delete(f.conns, conn)
	}
}
