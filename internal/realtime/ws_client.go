package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024
)

// ReadReceiptFunc is invoked when a WebSocket peer acknowledges a notification
type ReadReceiptFunc func(userID, notificationID string)

// wsClient pumps hub messages to a WebSocket connection
type wsClient struct {
	hub           *Hub
	conn          *websocket.Conn
	sub           *Subscriber
	onReadReceipt ReadReceiptFunc
}

type inboundMessage struct {
	Type           string `json:"type"`
	NotificationID string `json:"notificationId,omitempty"`
}

// readPump handles ping and read_receipt frames from the peer
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unregister(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("Ignoring malformed WebSocket frame from user %s: %v", c.sub.UserID, err)
			continue
		}

		switch msg.Type {
		case "ping":
			c.hub.SendToUser(c.sub.UserID, MessageTypePong, map[string]interface{}{
				"timestamp": time.Now().Unix(),
			})
		case "read_receipt":
			if msg.NotificationID != "" && c.onReadReceipt != nil {
				c.onReadReceipt(c.sub.UserID, msg.NotificationID)
			}
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.sub.Messages():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) start() {
	go c.writePump()
	c.readPump()
}
