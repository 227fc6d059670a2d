package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 512
)

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
}

// Hello is the first frame on every connection. Clients echo CorrelationID
// back when they request an email verification.
type Hello struct {
	Type          string `json:"type"`
	CorrelationID string `json:"correlationId"`
}

// Handler upgrades GET /ws and attaches the connection to the hub.
func (h *Hub) Handler(checkOrigin func(*http.Request) bool) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		c := &conn{id: uuid.NewString(), ws: ws, send: make(chan []byte, sendBuffer)}

		select {
		case h.register <- c:
		case <-h.done:
			_ = ws.Close()
			return
		}

		// The connection is routable before the client learns its id.
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(Hello{Type: "connected", CorrelationID: c.id}); err != nil {
			h.drop(c)
			_ = ws.Close()
			return
		}
		go h.writePump(c)
		h.readPump(c)
	})
}

// readPump only services control frames; clients never send data we act on.
func (h *Hub) readPump(c *conn) {
	defer func() {
		h.drop(c)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) drop(c *conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
