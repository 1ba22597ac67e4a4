package dashboard

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is pushed to connected pages.
type Event struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
}

// HandleWS handles GET /ws. The connection receives a reload event every
// time the dataset is replaced and is closed when the request context ends.
func (d *Dashboard) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	websocketClients.Inc()
	defer websocketClients.Dec()

	updates, cancel := d.holder.Subscribe()
	defer cancel()

	// the read pump only services control frames and detects close
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hello := Event{Type: "hello", Version: d.holder.Current().Version}
	if err := writeJSON(conn, hello); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case v := <-updates:
			if err := writeJSON(conn, Event{Type: "reload", Version: v}); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
