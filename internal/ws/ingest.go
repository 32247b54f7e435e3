package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/audio"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Ingest is a Source fed by a single websocket producer at a time. Each
// producer session (from connect to "stop" or disconnect) is one stream:
// Start blocks until a producer connects and returns when it leaves.
type Ingest struct {
	format   audio.Format
	upgrader websocket.Upgrader

	frames chan audio.SampleFrame
	ended  chan error

	mu     sync.Mutex
	busy   bool
	closed bool
	done   chan struct{}
}

// NewIngest returns an ingest endpoint. format is reported by Format and
// used for PCM chunks that omit sample_rate.
func NewIngest(format audio.Format) *Ingest {
	return &Ingest{
		format:   format,
		upgrader: newUpgrader(),
		frames:   make(chan audio.SampleFrame, 64),
		ended:    make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (in *Ingest) Format() audio.Format { return in.format }

// Start forwards frames from the connected producer to push.
func (in *Ingest) Start(ctx context.Context, push func(audio.SampleFrame)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-in.done:
			return nil
		case f := <-in.frames:
			push(f)
		case err := <-in.ended:
			// Frames queued before the producer left still belong to this
			// stream. The next producer is admitted only once they are gone.
			for {
				select {
				case f := <-in.frames:
					push(f)
				default:
					in.release()
					return err
				}
			}
		}
	}
}

// Close stops any Start in progress and rejects new producers.
func (in *Ingest) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.closed {
		in.closed = true
		close(in.done)
	}
	return nil
}

// Done is closed once Close has been called.
func (in *Ingest) Done() <-chan struct{} { return in.done }

// Handle is the /ws/ingest handler.
func (in *Ingest) Handle(w http.ResponseWriter, r *http.Request) {
	in.mu.Lock()
	if in.closed || in.busy {
		in.mu.Unlock()
		http.Error(w, "ingest busy", http.StatusConflict)
		return
	}
	in.busy = true
	in.mu.Unlock()

	conn, err := in.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		in.release()
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(readTimeout)); return nil })

	log.Info().Str("component", "ingest").Str("remote", r.RemoteAddr).Msg("producer connected")
	in.end(in.session(conn))
}

// session reads control and chunk messages until the producer stops. A
// clean "stop" ends the stream normally; anything else is a device error.
func (in *Ingest) session(conn *websocket.Conn) error {
	var chunks int
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Str("component", "ingest").Int("chunks", chunks).Msg("producer closed")
				return nil
			}
			log.Warn().Str("component", "ingest").Err(err).Msg("ws read error")
			return fmt.Errorf("%w: ingest connection lost: %v", transcript.ErrDevice, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "invalid json"})
			continue
		}
		switch msg.Type {
		case "ping":
			_ = conn.WriteJSON(map[string]any{"type": "pong", "ts": msg.TS})
		case "start":
			_ = conn.WriteJSON(map[string]any{"type": "started"})
		case "chunk":
			f, err := decodeChunk(msg, in.format)
			if err != nil {
				log.Warn().Str("component", "ingest").Err(err).Int("sequence", msg.Sequence).Msg("audio decode failed")
				_ = conn.WriteJSON(map[string]any{"type": "error", "detail": err.Error()})
				continue
			}
			select {
			case in.frames <- f:
				chunks++
			case <-in.done:
				return nil
			}
		case "stop":
			_ = conn.WriteJSON(map[string]any{"type": "stopped"})
			log.Info().Str("component", "ingest").Int("chunks", chunks).Msg("producer stopped")
			return nil
		default:
			_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "unknown message type"})
		}
	}
}

// release admits the next producer.
func (in *Ingest) release() {
	in.mu.Lock()
	in.busy = false
	in.mu.Unlock()
}

// end hands the session result to Start, which releases the endpoint after
// draining the session's frames.
func (in *Ingest) end(err error) {
	select {
	case in.ended <- err:
	case <-in.done:
	}
}
