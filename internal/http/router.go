package http

import (
	"encoding/json"
	"net/http"

	"github.com/obiente/translate/livetranslate/internal/observe"
	"github.com/obiente/translate/livetranslate/internal/ws"
)

// NewRouter mounts the health, metrics and websocket endpoints. metrics
// controls whether /metrics is served.
func NewRouter(ingest *ws.Ingest, hub *ws.Hub, metrics bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "viewers": hub.Viewers()})
	})
	if metrics {
		mux.Handle("/metrics", observe.Handler())
	}
	mux.HandleFunc("/ws/ingest", ingest.Handle)
	mux.HandleFunc("/ws/captions", hub.Handle)
	return mux
}
