// Package ws exposes the pipeline over websockets: an ingest endpoint that
// acts as an audio source and a caption endpoint that fans records out to
// viewers.
package ws

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obiente/translate/livetranslate/internal/audio"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin:     func(r *http.Request) bool { return true },
		ReadBufferSize:  1024 * 16,
		WriteBufferSize: 1024 * 16,
	}
}

// message is the client → server envelope shared by both endpoints.
type message struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	SampleRate any    `json:"sample_rate,omitempty"`
	Channels   any    `json:"channels,omitempty"`
	Sequence   int    `json:"sequence,omitempty"`
	PeerLabel  string `json:"peer_label,omitempty"`
	TS         any    `json:"ts,omitempty"`
}

// decodeChunk inflates a base64 chunk into a frame in its native format.
// Raw PCM16 needs sample_rate (and channels, default mono); anything else is
// treated as a WAV blob.
func decodeChunk(m message, def audio.Format) (audio.SampleFrame, error) {
	if m.Data == "" {
		return audio.SampleFrame{}, errors.New("empty chunk")
	}
	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return audio.SampleFrame{}, errors.New("invalid base64 audio")
	}
	switch m.MimeType {
	case "audio/pcm", "audio/L16", "audio/pcm16":
		f := audio.Format{SampleRate: int(asFloat(m.SampleRate)), Channels: int(asFloat(m.Channels))}
		if f.SampleRate <= 0 {
			f.SampleRate = def.SampleRate
		}
		if f.Channels <= 0 {
			f.Channels = 1
		}
		return audio.FrameFromPCM16LE(raw, f)
	default:
		return audio.DecodeWAV(raw)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	default:
		return 0
	}
}
