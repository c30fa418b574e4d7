package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/altobi/storyboard-exporter/internal/exporter"
)

const (
	wsPollInterval = 250 * time.Millisecond
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The agent binds to loopback only, so cross-origin browser pages on
	// the same machine are allowed to subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// exportEventsHandler streams an export's progress events over a
// websocket. Events already published before the client connected are
// replayed first, then new events are delivered as they appear. The
// stream closes after the terminal event.
func exportEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "export id required", "BAD_REQUEST")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		// Drain client frames so close messages are processed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		bus := cfg.Exports.Events()
		ticker := time.NewTicker(wsPollInterval)
		defer ticker.Stop()

		var lastSeq int64
		for {
			for _, event := range bus.Since(lastSeq) {
				lastSeq = event.Seq
				if event.ExportID != id {
					continue
				}

				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(event); err != nil {
					return
				}

				if event.Type == exporter.EventTypeComplete || event.Type == exporter.EventTypeError {
					conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}
