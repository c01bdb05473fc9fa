package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 4 << 10
)

// Serve pumps frames for userID over conn until the peer goes away, ctx is
// cancelled or the hub is closed. It owns conn and closes it on return.
// Inbound messages are read only to process control frames.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID string, pingEvery time.Duration) {
	if pingEvery <= 0 {
		pingEvery = 30 * time.Second
	}
	pongWait := pingEvery * 2

	sub := h.Subscribe(userID)
	defer h.Unsubscribe(sub)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxInboundSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	hello, _ := json.Marshal(Event{Event: EventConnected, Data: map[string]string{"userId": userID}})
	if err := write(conn, websocket.TextMessage, hello); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = write(conn, websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-done:
			return
		case frame, ok := <-sub.C():
			if !ok {
				_ = write(conn, websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := write(conn, websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("user_id", userID).Msg("ws write failed")
				return
			}
		case <-ticker.C:
			if err := write(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, mt int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(mt, data)
}
