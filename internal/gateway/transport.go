package gateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTransport adapts a gorilla websocket connection to the Transport
// interface. Writes are serialized through a mutex: gorilla connections do
// not allow concurrent writers.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (t *wsTransport) WriteFrame(frame any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(frame)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// ServeWS upgrades an HTTP request to a WebSocket and runs the peer's
// read loop until the socket closes. Frames from one peer are processed in
// arrival order because this loop reads and
// dispatches synchronously, one frame at a time. Binding the new peer to
// this socket's transport happens inside Dispatch itself, so this loop only
// needs to write the response and track disconnect.
func ServeWS(dispatcher *Dispatcher, registry *Registry, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "gateway.ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade failed", "error", err)
			return
		}
		transport := &wsTransport{conn: conn}
		state := &PeerState{}
		ctx := r.Context()

		defer func() {
			if state.Peer != nil {
				registry.Disconnect(state.Peer.Mode, state.Peer.ID, transport)
			}
			_ = conn.Close()
		}()

		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			return nil
		})

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}

			res, err := dispatcher.Dispatch(ctx, state, transport, raw)
			if err != nil {
				log.Warn("dispatch error", "error", err)
				continue
			}
			if res == nil {
				continue
			}
			if err := transport.WriteFrame(res); err != nil {
				log.Warn("write response failed", "error", err)
				return
			}
		}
	}
}
