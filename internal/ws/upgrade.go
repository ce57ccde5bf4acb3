package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"earnx/config"
	"earnx/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotFunc loads the state sent to a client right after it connects.
type SnapshotFunc func(ctx context.Context, userID string) (any, error)

// ServeAccountWS upgrades /ws/account. The access token comes from the token
// query parameter; the client receives its account snapshot, then every
// change pushed through the hub.
func ServeAccountWS(cfg *config.JWTConfig, hub *Hub, snapshot SnapshotFunc, log *logrus.Logger) gin.HandlerFunc {
	entry := log.WithField("component", "ws")
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			entry.WithError(err).Debug("upgrade failed")
			return
		}
		defer conn.Close()

		client := NewClient(claims.UserID, claims.Role)
		hub.Register(client)
		defer client.Close()

		if snapshot != nil {
			if state, err := snapshot(c.Request.Context(), claims.UserID); err == nil {
				if data, err := json.Marshal(Message{Type: "account.snapshot", Data: state}); err == nil {
					client.Send <- data
				}
			} else {
				entry.WithError(err).WithField("user_id", claims.UserID).Warn("snapshot failed")
			}
		}
		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames until the connection closes; the feed is
// server-to-client only.
func readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
