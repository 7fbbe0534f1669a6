package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"chatsync/internal/models"

	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// Conn is the part of a WebSocket connection the client pumps use
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client represents one change-feed connection
type Client struct {
	ID   string // User ID
	Conn Conn
	Hub  *Hub
	Send chan []byte

	mu   sync.RWMutex
	subs map[string]models.Scope // keyed by client-chosen ref
}

// NewClient creates a new change-feed client
func NewClient(userID string, conn Conn, hub *Hub) *Client {
	return &Client{
		ID:   userID,
		Conn: conn,
		Hub:  hub,
		Send: make(chan []byte, sendBufferSize),
		subs: make(map[string]models.Scope),
	}
}

// ReadPump handles incoming frames from the client
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var incoming IncomingMessage
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.sendError("", CodeBadFrame, "malformed frame")
			continue
		}

		c.handleIncomingMessage(context.Background(), incoming)
	}
}

// WritePump handles outgoing frames to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleIncomingMessage processes subscribe and unsubscribe frames
func (c *Client) handleIncomingMessage(ctx context.Context, msg IncomingMessage) {
	switch msg.Type {
	case EventSubscribe:
		c.handleSubscribe(ctx, msg)
	case EventUnsubscribe:
		c.handleUnsubscribe(msg)
	default:
		c.sendError(msg.Ref, CodeBadFrame, "unknown frame type: "+string(msg.Type))
	}
}

func (c *Client) handleSubscribe(ctx context.Context, msg IncomingMessage) {
	if msg.Ref == "" {
		c.sendError("", CodeBadFrame, "ref is required")
		return
	}
	if err := msg.Scope.Validate(); err != nil {
		c.sendError(msg.Ref, CodeInvalidScope, err.Error())
		return
	}

	allowed, err := c.Hub.Authorize(ctx, c.ID, msg.Scope)
	if err != nil {
		log.Printf("Failed to authorize subscription for %s: %v", c.ID, err)
		c.sendError(msg.Ref, CodeInternal, "could not authorize subscription")
		return
	}
	if !allowed {
		c.sendError(msg.Ref, CodeForbidden, "not allowed to subscribe to this scope")
		return
	}

	c.mu.Lock()
	c.subs[msg.Ref] = msg.Scope
	c.mu.Unlock()

	c.SendMessage(WSMessage{
		Type:      EventSubscribed,
		Ref:       msg.Ref,
		Payload:   msg.Scope,
		Timestamp: time.Now(),
	})
}

func (c *Client) handleUnsubscribe(msg IncomingMessage) {
	c.mu.Lock()
	delete(c.subs, msg.Ref)
	c.mu.Unlock()

	c.SendMessage(WSMessage{
		Type:      EventUnsubscribed,
		Ref:       msg.Ref,
		Timestamp: time.Now(),
	})
}

// matching returns the refs of subscriptions whose scope covers ev
func (c *Client) matching(ev models.ChangeEvent) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var refs []string
	for ref, scope := range c.subs {
		if scope.Matches(ev) {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Subscriptions returns how many scopes the client holds
func (c *Client) Subscriptions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

func (c *Client) sendError(ref, code, message string) {
	c.SendMessage(WSMessage{
		Type:      EventError,
		Ref:       ref,
		Payload:   ErrorPayload{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// SendMessage queues a frame for the client. Frames are dropped when the
// buffer is full; the hub disconnects clients that fall behind on changes.
func (c *Client) SendMessage(msg WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return false
	}
	return c.trySend(data)
}

func (c *Client) trySend(data []byte) (ok bool) {
	defer func() {
		// Send may already be closed by the hub
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}
