package realtime

import (
	"log"
	"net/http"
	"strings"

	"crolars/internal/util"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development, restrict in production
		return true
	},
}

// ServeWS upgrades to a WebSocket that carries the same messages as the SSE stream
func ServeWS(hub *Hub, jwtSecret string, onReadReceipt ReadReceiptFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract token from query parameter or header
		token := r.URL.Query().Get("token")
		if token == "" {
			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		if token == "" {
			http.Error(w, "Authorization token required", http.StatusUnauthorized)
			return
		}

		claims, err := util.ValidateToken(token, jwtSecret)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		sub := NewSubscriber(claims.UserID)
		if !hub.Register(sub) {
			conn.Close()
			return
		}
		hub.SendToUser(claims.UserID, MessageTypeConnected, map[string]interface{}{"userId": claims.UserID})

		client := &wsClient{
			hub:           hub,
			conn:          conn,
			sub:           sub,
			onReadReceipt: onReadReceipt,
		}
		go client.start()
	}
}
