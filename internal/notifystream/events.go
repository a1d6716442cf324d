package notifystream

import (
	"encoding/json"
	"fmt"

	"crolars/internal/model"
)

// Event is one decoded stream message. The set of implementations is closed.
type Event interface {
	isEvent()
}

// NotificationEvent carries a stored notification
type NotificationEvent struct {
	Notification model.Notification
}

// FeedUpdateEvent signals new activity without carrying any content
type FeedUpdateEvent struct {
	Data json.RawMessage
}

// SystemAnnouncementEvent is a broadcast to every connected user
type SystemAnnouncementEvent struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ConnectedEvent is the first message on every stream
type ConnectedEvent struct {
	UserID string `json:"userId"`
}

func (NotificationEvent) isEvent()       {}
func (FeedUpdateEvent) isEvent()         {}
func (SystemAnnouncementEvent) isEvent() {}
func (ConnectedEvent) isEvent()          {}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeEvent parses one {type, data} payload. Unknown types decode to a nil
// Event and a nil error.
func DecodeEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("invalid stream payload: %w", err)
	}

	switch env.Type {
	case "notification":
		var e NotificationEvent
		if err := json.Unmarshal(env.Data, &e.Notification); err != nil {
			return nil, fmt.Errorf("invalid notification payload: %w", err)
		}
		return e, nil
	case "feed_update":
		return FeedUpdateEvent{Data: env.Data}, nil
	case "system_announcement":
		var e SystemAnnouncementEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("invalid announcement payload: %w", err)
		}
		return e, nil
	case "connected":
		var e ConnectedEvent
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &e); err != nil {
				return nil, fmt.Errorf("invalid connected payload: %w", err)
			}
		}
		return e, nil
	}
	return nil, nil
}
