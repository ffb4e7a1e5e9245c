package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/gorilla/websocket"
)

const maxMessageSize = 4 * 1024

// ConnConfig tunes one push connection.
type ConnConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	// Lifetime closes the connection with a Timeout event; zero means no limit.
	Lifetime time.Duration
}

func DefaultListenConfig() ConnConfig {
	return ConnConfig{PingInterval: 60 * time.Second, PongWait: 120 * time.Second, WriteWait: 10 * time.Second}
}

func DefaultWaitConfig(lifetime time.Duration) ConnConfig {
	c := DefaultListenConfig()
	c.Lifetime = lifetime
	return c
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Serve registers conn as the device's channel and pumps events to it until
// the peer goes silent, the session is replaced, the lifetime elapses or a
// terminal event is written. The hub entry is removed exactly once.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID, deviceID int64, cfg ConnConfig) {
	s := h.Connect(ctx, userID, deviceID)
	defer func() {
		h.Disconnect(ctx, s)
		_ = conn.Close()
	}()

	go readPump(conn, s, cfg.PongWait)
	h.writePump(ctx, conn, s, cfg)
}

// readPump discards inbound frames; its only job is to observe pongs and
// notice a dead peer.
func readPump(conn *websocket.Conn, s *Session, pongWait time.Duration) {
	defer s.Stop()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, s *Session, cfg ConnConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	var lifetime <-chan time.Time
	if cfg.Lifetime > 0 {
		t := time.NewTimer(cfg.Lifetime)
		defer t.Stop()
		lifetime = t.C
	}

	write := func(ev events.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
		return conn.WriteJSON(ev)
	}
	closeNormal := func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(cfg.WriteWait))
	}

	for {
		select {
		case ev := <-s.Events():
			if err := write(ev); err != nil {
				h.logger.Debug(ctx, "push write failed", "device_id", s.DeviceID, "error", err)
				return
			}
			if ev.Terminal() {
				closeNormal()
				return
			}
		case <-lifetime:
			if err := write(events.NewTimeout()); err == nil {
				closeNormal()
			}
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done():
			closeNormal()
			return
		case <-ctx.Done():
			closeNormal()
			return
		}
	}
}
