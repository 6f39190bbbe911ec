// Package websocket streams turn deltas to subscribed websocket clients.
// A client subscribes to the chats it owns and receives every delta of
// their turns, in addition to the SSE response of the requesting client.
package websocket

import "encoding/json"

// Message is one websocket frame in either direction.
type Message struct {
	Type   string          `json:"type"`
	ChatID string          `json:"chatId,omitempty"`
	Delta  json.RawMessage `json:"delta,omitempty"`
	Code   string          `json:"code,omitempty"`
	// Message is the human readable text of an error frame.
	Message string `json:"message,omitempty"`
}

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSubscribed  = "subscribed"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeDelta       = "delta"
	TypeError       = "error"
)

// Error codes sent to clients.
const (
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeForbidden      = "FORBIDDEN"
	CodeUnknownType    = "UNKNOWN_TYPE"
)

type broadcast struct {
	chatID string
	data   []byte
}
