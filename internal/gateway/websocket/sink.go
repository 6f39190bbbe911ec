package websocket

import (
	"finch/internal/delta"
)

// DeltaSink forwards the deltas of one chat to its subscribers. It is
// meant as an encoder observer: it never fails the turn.
type DeltaSink struct {
	hub    *Hub
	chatID string
}

// NewDeltaSink creates a sink for chatID.
func NewDeltaSink(hub *Hub, chatID string) *DeltaSink {
	return &DeltaSink{hub: hub, chatID: chatID}
}

// Send implements delta.Sink.
func (s *DeltaSink) Send(d delta.Delta) error {
	if s.hub.Subscribers(s.chatID) == 0 {
		return nil
	}
	raw, err := delta.Marshal(d)
	if err != nil {
		return err
	}
	return s.hub.PublishMessage(Message{Type: TypeDelta, ChatID: s.chatID, Delta: raw})
}
