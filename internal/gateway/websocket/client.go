package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"finch/internal/auth"
	"finch/internal/gateway/handlers"
	"finch/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Client frames are small control messages.
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	chats  map[string]bool
	id     string
	userID string
	ctx    context.Context
	// closed is guarded by hub.mu and set once send is closed.
	closed bool
}

func newClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		chats:  make(map[string]bool),
		id:     uuid.NewString(),
		userID: userID,
		ctx:    ctx,
	}
}

// readPump reads client frames until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(Message{Type: TypeError, Code: CodeInvalidMessage, Message: "failed to parse message"})
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		if msg.ChatID == "" {
			c.reply(Message{Type: TypeError, Code: CodeInvalidMessage, Message: "chatId is required"})
			return
		}
		if err := c.hub.Subscribe(c.ctx, c, msg.ChatID); err != nil {
			logger.Debug().Err(err).Str("client_id", c.id).Str("chat_id", msg.ChatID).Msg("Subscription refused")
			c.reply(Message{Type: TypeError, ChatID: msg.ChatID, Code: CodeForbidden, Message: "cannot follow this chat"})
			return
		}
		c.reply(Message{Type: TypeSubscribed, ChatID: msg.ChatID})

	case TypeUnsubscribe:
		c.hub.Unsubscribe(c, msg.ChatID)

	case TypePing:
		c.reply(Message{Type: TypePong})

	default:
		c.reply(Message{Type: TypeError, Code: CodeUnknownType, Message: "unknown message type " + msg.Type})
	}
}

// writePump writes queued frames and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a frame for this client only. The hub serializes it with
// channel close.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Handler upgrades authenticated requests and attaches the connection to
// hub.
func Handler(hub *Hub, checkOrigin func(r *http.Request) bool) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.FromContext(r.Context())
		if !ok {
			handlers.SendError(w, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "Unauthorized")
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Ctx(r.Context()).Warn().Err(err).Msg("Failed to upgrade WebSocket connection")
			return
		}

		// The request context ends with the handler; subscriptions are
		// checked against a detached one.
		c := newClient(context.WithoutCancel(r.Context()), hub, conn, user.ID)
		hub.Register(c)
		go c.writePump()
		go c.readPump()
	}
}
