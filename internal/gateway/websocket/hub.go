package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"finch/pkg/logger"
)

// Authorizer decides whether userID may follow chatID.
type Authorizer func(ctx context.Context, userID, chatID string) error

// Hub tracks connected clients and their chat subscriptions.
type Hub struct {
	clients    map[*Client]bool
	chats      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast
	done       chan struct{}
	authorize  Authorizer
	mu         sync.RWMutex
}

// NewHub creates a hub. A nil authorize allows every subscription.
func NewHub(authorize Authorizer) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		chats:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, 256),
		done:       make(chan struct{}),
		authorize:  authorize,
	}
}

// Run processes registrations and broadcasts until ctx is done. Remaining
// clients are disconnected on exit.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			h.drop(c)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			logger.Debug().Str("client_id", c.id).Str("user_id", c.userID).Msg("WebSocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()
			logger.Debug().Str("client_id", c.id).Msg("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.chats[msg.chatID] {
				select {
				case c.send <- msg.data:
				default:
					logger.Warn().Str("client_id", c.id).Str("chat_id", msg.chatID).Msg("WebSocket client too slow, delta dropped")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// drop removes c and closes its send channel. h.mu must be held.
func (h *Hub) drop(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	c.closed = true
	close(c.send)
	for chatID := range c.chats {
		if subs, ok := h.chats[chatID]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.chats, chatID)
			}
		}
	}
}

// Register adds a client. It is a no-op once the hub stopped.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribe adds c to the subscribers of chatID after checking access.
func (h *Hub) Subscribe(ctx context.Context, c *Client, chatID string) error {
	if h.authorize != nil {
		if err := h.authorize(ctx, c.userID, chatID); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	c.chats[chatID] = true
	if h.chats[chatID] == nil {
		h.chats[chatID] = make(map[*Client]bool)
	}
	h.chats[chatID][c] = true
	return nil
}

// Unsubscribe removes c from the subscribers of chatID.
func (h *Hub) Unsubscribe(c *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.chats, chatID)
	if subs, ok := h.chats[chatID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.chats, chatID)
		}
	}
}

// Publish queues data for the subscribers of chatID. It never blocks; when
// the queue is full the frame is dropped.
func (h *Hub) Publish(chatID string, data []byte) {
	select {
	case h.broadcast <- broadcast{chatID: chatID, data: data}:
	default:
		logger.Warn().Str("chat_id", chatID).Msg("WebSocket broadcast queue full, delta dropped")
	}
}

// PublishMessage encodes msg and publishes it to its chat.
func (h *Hub) PublishMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Publish(msg.ChatID, data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribers returns the number of clients following chatID.
func (h *Hub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats[chatID])
}
