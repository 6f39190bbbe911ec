package runner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"finch/internal/provider"
	"finch/internal/storage"
)

// MessageStore saves a turn's messages.
type MessageStore interface {
	SaveMessages(ctx context.Context, chatID string, msgs []*storage.Message) error
}

// Persister stores sanitized response messages under fresh ids.
type Persister struct {
	store MessageStore
}

// NewPersister creates a Persister.
func NewPersister(store MessageStore) *Persister {
	return &Persister{store: store}
}

// Persist sanitizes msgs, assigns each survivor a uuid and saves them in
// one transaction. It returns the ids of the saved assistant messages in
// order. Nothing is saved when all messages were dropped.
func (p *Persister) Persist(ctx context.Context, chatID string, msgs []provider.Message) ([]string, error) {
	clean := Sanitize(msgs)
	if len(clean) == 0 {
		return nil, nil
	}

	rows := make([]*storage.Message, len(clean))
	var assistantIDs []string
	for i, m := range clean {
		rows[i] = toStorageMessage(uuid.NewString(), m)
		if m.Role == provider.RoleAssistant {
			assistantIDs = append(assistantIDs, rows[i].ID)
		}
	}
	if err := p.store.SaveMessages(ctx, chatID, rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return assistantIDs, nil
}

func toStorageMessage(id string, m provider.Message) *storage.Message {
	sm := &storage.Message{
		ID:         id,
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
	for _, tc := range m.ToolCalls {
		sm.ToolCalls = append(sm.ToolCalls, storage.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return sm
}
