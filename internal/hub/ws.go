package hub

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// InboundFunc handles a text frame sent by a WebSocket client. Errors are
// logged; the connection stays open.
type InboundFunc func(ctx context.Context, frame []byte) error

// WSHandler upgrades /ws. allowedOrigins empty accepts any origin.
func WSHandler(hub *Hub, allowedOrigins []string, inbound InboundFunc) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
		},
	}

	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		log := hub.log.WithField("transport", "websocket")

		// every write happens under the hub lock; gorilla allows one
		// concurrent writer
		hub.JoinWS(ws)
		log.Debug("client connected")

		for {
			kind, frame, err := ws.ReadMessage()
			if err != nil {
				break
			}
			if kind != websocket.TextMessage || inbound == nil {
				continue
			}
			if err := inbound(c.Request.Context(), frame); err != nil {
				log.WithError(err).Warn("inbound message rejected")
			}
		}

		hub.RemoveWS(ws)
		log.Debug("client disconnected")
	}
}
