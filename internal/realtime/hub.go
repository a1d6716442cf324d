package realtime

import (
	"log"
	"sync"
)

// Message types pushed to subscribers
const (
	MessageTypeConnected          = "connected"
	MessageTypeNotification       = "notification"
	MessageTypeFeedUpdate         = "feed_update"
	MessageTypeSystemAnnouncement = "system_announcement"
	MessageTypePong               = "pong"
)

const subscriberBuffer = 64

// Message is the {type, data} envelope written to every transport
type Message struct {
	UserID string      `json:"-"`
	Type   string      `json:"type"`
	Data   interface{} `json:"data,omitempty"`
}

// Subscriber is one open stream (SSE response or WebSocket) for a user
type Subscriber struct {
	UserID string
	send   chan *Message
}

func NewSubscriber(userID string) *Subscriber {
	return &Subscriber{
		UserID: userID,
		send:   make(chan *Message, subscriberBuffer),
	}
}

// Messages is closed by the hub once the subscriber is unregistered or dropped
func (s *Subscriber) Messages() <-chan *Message {
	return s.send
}

// Hub maintains the set of active subscribers and fans messages out to them
type Hub struct {
	// Registered subscribers by user ID
	clients map[string]map[*Subscriber]bool

	broadcast  chan *Message
	register   chan *Subscriber
	unregister chan *Subscriber
	done       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Subscriber]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case sub := <-h.register:
			h.mu.Lock()
			if h.clients[sub.UserID] == nil {
				h.clients[sub.UserID] = make(map[*Subscriber]bool)
			}
			h.clients[sub.UserID][sub] = true
			count := len(h.clients[sub.UserID])
			h.mu.Unlock()
			log.Printf("Stream subscriber registered: UserID=%s, open streams for user: %d", sub.UserID, count)

		case sub := <-h.unregister:
			h.mu.Lock()
			h.remove(sub)
			h.mu.Unlock()
			log.Printf("Stream subscriber unregistered: UserID=%s", sub.UserID)

		case message := <-h.broadcast:
			h.mu.Lock()
			if message.UserID != "" {
				for sub := range h.clients[message.UserID] {
					h.deliver(sub, message)
				}
			} else {
				for _, subs := range h.clients {
					for sub := range subs {
						h.deliver(sub, message)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop terminates Run and closes every subscriber
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a subscriber; returns false if the hub is stopped
func (h *Hub) Register(sub *Subscriber) bool {
	select {
	case h.register <- sub:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a subscriber and closes its channel
func (h *Hub) Unregister(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// deliver must be called with mu held. Subscribers with a full buffer are
// dropped so one slow stream cannot stall the hub.
func (h *Hub) deliver(sub *Subscriber, message *Message) {
	select {
	case sub.send <- message:
	default:
		log.Printf("Stream buffer full, dropping subscriber for user: %s", sub.UserID)
		h.remove(sub)
	}
}

// remove must be called with mu held
func (h *Hub) remove(sub *Subscriber) {
	subs, ok := h.clients[sub.UserID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.clients, sub.UserID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.clients {
		for sub := range subs {
			h.remove(sub)
		}
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		log.Printf("Broadcast channel full, dropping %s message for user: %q", message.Type, message.UserID)
	}
}

// SendToUser pushes a typed message to every stream of one user
func (h *Hub) SendToUser(userID, msgType string, data interface{}) {
	h.enqueue(&Message{UserID: userID, Type: msgType, Data: data})
}

// SendToAll pushes a typed message to every connected stream
func (h *Hub) SendToAll(msgType string, data interface{}) {
	h.enqueue(&Message{Type: msgType, Data: data})
}

// GetClientCount returns the number of open streams for a user
func (h *Hub) GetClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// GetTotalClientCount returns the total number of open streams
func (h *Hub) GetTotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, subs := range h.clients {
		count += len(subs)
	}
	return count
}
