package daemon

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theirongolddev/burnclock/internal/session"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the daemon binds to loopback by default
	},
}

// hello is the first message on every stream: the current session list.
type hello struct {
	Type     string             `json:"type"`
	At       time.Time          `json:"at"`
	Sessions []session.Snapshot `json:"sessions"`
}

func (s *Service) hello() hello {
	return hello{Type: "snapshot", At: time.Now(), Sessions: s.mgr.List()}
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 64)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	h := s.hello()
	writeSSE(w, 0, h.Type, h)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev.ID, string(ev.Type), ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, id int64, typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if id > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", id)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", typ)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

// handleWebSocket streams the same events as /v1/stream over a WebSocket.
// Client messages are read only to service pongs and detect close.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("daemon level=warn event=ws_upgrade err=%v", err)
		return
	}

	ch := make(chan Event, 64)
	id := s.addSubscriber(ch)
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readDeadline))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("daemon level=warn event=ws_read err=%v", err)
				}
				return
			}
		}
	}()

	s.writePump(conn, ch, done)
	s.removeSubscriber(id)
	_ = conn.Close()
}

func (s *Service) writePump(conn *websocket.Conn, ch <-chan Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(s.hello()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case ev := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
