// Package notifystream holds a live Server-Sent Events connection to the
// notification stream of one user and keeps a capped, newest-first buffer of
// what arrives.
package notifystream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"crolars/internal/model"
)

const (
	DefaultBufferSize     = 50
	DefaultReconnectDelay = 5 * time.Second
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "disconnected"
}

type Options struct {
	// BaseURL is the API root, e.g. http://localhost:5000/api/v1
	BaseURL        string
	Token          string
	HTTPClient     *http.Client
	BufferSize     int
	ReconnectDelay time.Duration
	Toaster        Toaster
}

type listener struct {
	id int
	fn func(model.Notification)
}

type Client struct {
	opts Options

	mu        sync.Mutex
	state     State
	userID    string
	runCtx    context.Context
	cancel    context.CancelFunc
	buffer    []model.Notification
	unread    int
	listeners []listener
	nextID    int
}

func NewClient(opts Options) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Toaster == nil {
		opts.Toaster = LogToaster{}
	}
	return &Client{opts: opts}
}

// Connect opens the stream for userID. It is a no-op while a connection for
// the same user is open, connecting or waiting to reconnect.
func (c *Client) Connect(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		if c.userID == userID {
			return
		}
		c.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.userID = userID
	c.runCtx = ctx
	c.cancel = cancel
	c.state = StateConnecting

	go c.run(ctx, userID)
}

// Disconnect closes the stream and stops reconnecting. Safe to call at any time.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.runCtx = nil
	c.state = StateDisconnected
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connected() bool {
	return c.State() == StateOpen
}

// Subscribe registers a listener for incoming notifications, called in
// arrival order. The returned func removes it.
func (c *Client) Subscribe(fn func(model.Notification)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Notifications returns a copy of the buffer, newest first
func (c *Client) Notifications() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Notification, len(c.buffer))
	copy(out, c.buffer)
	return out
}

func (c *Client) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// transition applies a state change only if ctx still owns the connection
func (c *Client) transition(ctx context.Context, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runCtx == ctx {
		c.state = s
	}
}

func (c *Client) run(ctx context.Context, userID string) {
	for {
		err := c.stream(ctx, userID)
		if ctx.Err() != nil {
			return
		}

		c.transition(ctx, StateDisconnected)
		log.Printf("Notification stream closed: %v, reconnecting in %s", err, c.opts.ReconnectDelay)

		timer := time.NewTimer(c.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.transition(ctx, StateConnecting)
	}
}

// stream holds one connection open until it fails or ctx is cancelled
func (c *Client) stream(ctx context.Context, userID string) error {
	endpoint := fmt.Sprintf("%s/notifications/stream?userId=%s", c.opts.BaseURL, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected stream status: %s", resp.Status)
	}

	c.transition(ctx, StateOpen)

	err = readEvents(resp.Body, func(payload string) {
		if ctx.Err() != nil {
			return
		}
		c.handlePayload([]byte(payload))
	})
	if err == nil {
		err = errors.New("stream closed by server")
	}
	return err
}

// maxEventLine bounds a single SSE line; longer lines end the connection
const maxEventLine = 1 << 20

// readEvents splits an SSE body into data payloads. Comment lines and fields
// other than data are ignored.
func readEvents(body io.Reader, emit func(payload string)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventLine)
	var data []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if len(data) > 0 {
				emit(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			data = append(data, strings.TrimPrefix(value, " "))
		}
	}
	return scanner.Err()
}

func (c *Client) handlePayload(payload []byte) {
	event, err := DecodeEvent(payload)
	if err != nil {
		log.Printf("Skipping notification stream message: %v", err)
		return
	}

	switch e := event.(type) {
	case NotificationEvent:
		c.receive(e.Notification)
		c.opts.Toaster.Toast(Toast{
			Level:    ToastInfo,
			Title:    e.Notification.Title,
			Message:  e.Notification.Message,
			Duration: 5 * time.Second,
		})
	case FeedUpdateEvent:
		c.opts.Toaster.Toast(Toast{
			Level:    ToastInfo,
			Title:    "Nueva actividad",
			Message:  "Hay contenido nuevo en tu feed",
			Duration: 3 * time.Second,
		})
	case SystemAnnouncementEvent:
		c.opts.Toaster.Toast(Toast{
			Level:    ToastWarning,
			Title:    e.Title,
			Message:  e.Message,
			Duration: 10 * time.Second,
		})
	case ConnectedEvent:
		log.Printf("Notification stream connected for user %s", e.UserID)
	}
}

// receive prepends to the buffer and fans out to listeners
func (c *Client) receive(n model.Notification) {
	c.mu.Lock()
	for i, existing := range c.buffer {
		if existing.ID == n.ID {
			if !existing.Read {
				c.unread--
			}
			c.buffer = append(c.buffer[:i:i], c.buffer[i+1:]...)
			break
		}
	}
	c.buffer = append([]model.Notification{n}, c.buffer...)
	if len(c.buffer) > c.opts.BufferSize {
		c.buffer = c.buffer[:c.opts.BufferSize]
	}
	if !n.Read {
		c.unread++
	}
	listeners := make([]listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		notify(l.fn, n)
	}
}

func notify(fn func(model.Notification), n model.Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Notification listener panicked: %v", r)
		}
	}()
	fn(n)
}

// MarkAsRead flips the local entry and tells the server. A failed request is
// logged and the local change is kept.
func (c *Client) MarkAsRead(ctx context.Context, notificationID string) {
	c.mu.Lock()
	for i := range c.buffer {
		if c.buffer[i].ID == notificationID && !c.buffer[i].Read {
			now := time.Now()
			c.buffer[i].Read = true
			c.buffer[i].ReadAt = &now
			if c.unread > 0 {
				c.unread--
			}
			break
		}
	}
	c.mu.Unlock()

	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(notificationID))
	if err := c.patch(ctx, path); err != nil {
		log.Printf("Failed to mark notification %s as read: %v", notificationID, err)
	}
}

// MarkAllAsRead is the bulk form of MarkAsRead
func (c *Client) MarkAllAsRead(ctx context.Context) {
	c.mu.Lock()
	now := time.Now()
	for i := range c.buffer {
		if !c.buffer[i].Read {
			c.buffer[i].Read = true
			c.buffer[i].ReadAt = &now
		}
	}
	c.unread = 0
	c.mu.Unlock()

	if err := c.patch(ctx, "/notifications/read-all"); err != nil {
		log.Printf("Failed to mark all notifications as read: %v", err)
	}
}

type listPayload struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

// FetchInitial replaces the buffer and unread count with the server snapshot
func (c *Client) FetchInitial(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/notifications?limit=%d", c.opts.BaseURL, c.opts.BufferSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch notifications: %s", resp.Status)
	}

	var body struct {
		Data *listPayload `json:"data"`
		listPayload
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode notifications: %w", err)
	}
	snapshot := body.listPayload
	if body.Data != nil {
		snapshot = *body.Data
	}

	if len(snapshot.Notifications) > c.opts.BufferSize {
		snapshot.Notifications = snapshot.Notifications[:c.opts.BufferSize]
	}

	c.mu.Lock()
	c.buffer = snapshot.Notifications
	c.unread = snapshot.UnreadCount
	c.mu.Unlock()
	return nil
}

// Refresh refetches the snapshot
func (c *Client) Refresh(ctx context.Context) error {
	return c.FetchInitial(ctx)
}

func (c *Client) patch(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.opts.BaseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
}
