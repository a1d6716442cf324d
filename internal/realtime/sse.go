package realtime

import (
	"io"
	"net/http"
	"time"

	"crolars/internal/util"

	"github.com/gin-gonic/gin"
)

const sseKeepAlive = 25 * time.Second

// ServeSSE streams hub messages for the authenticated user as Server-Sent
// Events. The optional userId query parameter must match the token.
func ServeSSE(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			util.Unauthorized(c, "User not authenticated")
			return
		}
		if requested := c.Query("userId"); requested != "" && requested != userID {
			util.Forbidden(c, "Cannot subscribe to another user's notifications")
			return
		}

		sub := NewSubscriber(userID)
		if !hub.Register(sub) {
			util.ErrorResponse(c, http.StatusServiceUnavailable, "Notification stream unavailable", nil)
			return
		}
		defer hub.Unregister(sub)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		c.SSEvent("message", &Message{Type: MessageTypeConnected, Data: gin.H{"userId": userID}})
		c.Writer.Flush()

		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case msg, ok := <-sub.Messages():
				if !ok {
					return false
				}
				c.SSEvent("message", msg)
				return true
			case <-ticker.C:
				_, err := io.WriteString(w, ": keep-alive\n\n")
				return err == nil
			}
		})
	}
}
