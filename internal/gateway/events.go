package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// snapshot is the first message on every event stream. Events after it
// apply on top; a reconnecting client starts over from a new snapshot.
type snapshot struct {
	Type      string                   `json:"type"`
	Providers []schema.ProviderSummary `json:"providers"`
	Tools     []schema.ToolSummary     `json:"tools"`
}

// handleEvents streams registry events over a websocket. The subscription
// is taken before the snapshot is read so no change falls between them.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	events, subID := s.hub.Subscribe(ctx)
	log := s.logger.With("subscriber", subID)
	log.Info("event stream opened", "remote", r.RemoteAddr)

	go s.readPump(conn, cancel)

	snap := snapshot{Type: "snapshot", Providers: s.hub.ListProviders(), Tools: s.hub.ListTools()}
	if err := writeMessage(conn, snap); err != nil {
		log.Debug("snapshot write failed", "err", err)
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				log.Info("event stream closed")
				return
			}
			if err := writeMessage(conn, ev); err != nil {
				log.Debug("event write failed", "event", ev.Type, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and cancels the stream when the peer
// goes away.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}
