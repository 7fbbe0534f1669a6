package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"chatsync/internal/models"
)

// MembershipChecker answers group membership questions for authorization
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Hub maintains the set of change-feed clients and fans out change events
type Hub struct {
	// Registered clients
	Clients map[*Client]struct{}

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	events  chan models.ChangeEvent
	members MembershipChecker

	// closed when Run returns
	done chan struct{}
	stop sync.Once

	// Mutex for thread-safe reads of Clients
	mu sync.RWMutex
}

// NewHub creates a new change-feed hub
func NewHub(members MembershipChecker) *Hub {
	return &Hub{
		Clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		events:     make(chan models.ChangeEvent, 1024),
		members:    members,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer h.stop.Do(func() { close(h.done) })
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case ev := <-h.events:
			h.dispatch(ev)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Join registers client. It reports false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client; it returns at once if the hub has stopped
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Publish queues a change event for delivery
func (h *Hub) Publish(ev models.ChangeEvent) {
	select {
	case h.events <- ev:
	default:
		log.Printf("Change feed backlog full, dropping %s event on %s", ev.Type, ev.Table)
	}
}

// Authorize decides whether userID may subscribe to scope
func (h *Hub) Authorize(ctx context.Context, userID string, scope models.Scope) (bool, error) {
	switch scope.Table {
	case models.TableDirectMessages:
		return scope.Includes(userID), nil
	case models.TableGroupMessages:
		if h.members == nil {
			return false, nil
		}
		return h.members.IsMember(ctx, scope.GroupID, userID)
	}
	return false, nil
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Clients[client] = struct{}{}
	log.Printf("Change feed client connected: %s", client.ID)
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.Clients[client]; ok {
		delete(h.Clients, client)
		close(client.Send)
		log.Printf("Change feed client disconnected: %s", client.ID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.Clients {
		h.removeLocked(client)
	}
}

// dispatch delivers ev to every subscription whose scope matches
func (h *Hub) dispatch(ev models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.Clients {
		for _, ref := range client.matching(ev) {
			data, err := json.Marshal(WSMessage{
				Type:      EventChange,
				Ref:       ref,
				Payload:   ev,
				Timestamp: time.Now(),
			})
			if err != nil {
				log.Printf("Failed to marshal change event: %v", err)
				return
			}
			if !client.trySend(data) {
				log.Printf("Client %s is not keeping up, disconnecting", client.ID)
				h.removeLocked(client)
				break
			}
		}
	}
}

// GetOnlineCount returns the number of connected clients
func (h *Hub) GetOnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.Clients)
}

// GetSubscriptionCount returns the number of live subscriptions
func (h *Hub) GetSubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for client := range h.Clients {
		total += client.Subscriptions()
	}
	return total
}
