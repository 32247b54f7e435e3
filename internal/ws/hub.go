package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/sink"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Hub is a Sink that broadcasts every record to connected caption viewers.
// Slow viewers are disconnected rather than allowed to hold up emission.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	viewers map[*viewer]struct{}
}

type viewer struct {
	conn  *websocket.Conn
	label string
	send  chan []byte
}

// captionMessage is the server → viewer transcript payload.
type captionMessage struct {
	Type string `json:"type"`
	sink.Line
}

func NewHub() *Hub {
	return &Hub{
		upgrader: newUpgrader(),
		viewers:  make(map[*viewer]struct{}),
	}
}

// Emit implements sink.Sink.
func (h *Hub) Emit(r transcript.Record) error {
	b, err := json.Marshal(captionMessage{Type: "transcript", Line: sink.NewLine(r)})
	if err != nil {
		return err
	}
	h.broadcast(b)
	return nil
}

// Viewers returns how many viewers are connected.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) broadcast(b []byte) {
	h.mu.RLock()
	var slow []*viewer
	for v := range h.viewers {
		select {
		case v.send <- b:
		default:
			slow = append(slow, v)
			log.Warn().Str("component", "captions").Str("viewer", v.label).Msg("viewer too slow; disconnecting")
		}
	}
	h.mu.RUnlock()
	for _, v := range slow {
		h.leave(v)
	}
}

// Handle is the /ws/captions handler.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	v := &viewer{conn: conn, label: r.RemoteAddr, send: make(chan []byte, 64)}
	h.join(v)
	go h.writeLoop(v)
	h.readLoop(v)
}

func (h *Hub) join(v *viewer) {
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
	log.Info().Str("component", "captions").Str("viewer", v.label).Int("viewers", h.Viewers()).Msg("viewer joined")
	h.broadcastRoster()
}

func (h *Hub) leave(v *viewer) {
	h.mu.Lock()
	_, ok := h.viewers[v]
	label := v.label
	if ok {
		delete(h.viewers, v)
		close(v.send)
	}
	h.mu.Unlock()
	if ok {
		log.Info().Str("component", "captions").Str("viewer", label).Msg("viewer left")
		h.broadcastRoster()
	}
}

func (h *Hub) broadcastRoster() {
	h.mu.RLock()
	labels := make([]string, 0, len(h.viewers))
	for v := range h.viewers {
		labels = append(labels, v.label)
	}
	h.mu.RUnlock()
	b, _ := json.Marshal(map[string]any{"type": "roster", "viewers": labels})
	h.broadcast(b)
}

// readLoop handles viewer control messages until the connection drops.
func (h *Hub) readLoop(v *viewer) {
	defer h.leave(v)
	_ = v.conn.SetReadDeadline(time.Now().Add(readTimeout))
	v.conn.SetPongHandler(func(string) error { _ = v.conn.SetReadDeadline(time.Now().Add(readTimeout)); return nil })
	for {
		mt, data, err := v.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = v.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			h.sendTo(v, map[string]any{"type": "pong", "ts": msg.TS})
		case "hello":
			if msg.PeerLabel != "" {
				h.mu.Lock()
				v.label = msg.PeerLabel
				h.mu.Unlock()
				h.broadcastRoster()
			}
		}
	}
}

func (h *Hub) sendTo(v *viewer, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.viewers[v]; !ok {
		return
	}
	select {
	case v.send <- b:
	default:
	}
}

// writeLoop is the only writer on the connection.
func (h *Hub) writeLoop(v *viewer) {
	defer v.conn.Close()
	for b := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := v.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.leave(v)
			// Drain so leave's close of send terminates the loop.
			for range v.send {
			}
			return
		}
	}
	_ = v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
