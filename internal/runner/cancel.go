package runner

import (
	"context"
	"sync"
)

// CancelRegistry tracks the running turn of each chat so Stop can cancel
// it. Stop and natural completion may race; both are safe.
type CancelRegistry struct {
	mu    sync.Mutex
	turns map[string]*runningTurn
}

type runningTurn struct {
	cancel context.CancelFunc
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{turns: make(map[string]*runningTurn)}
}

// Register derives a cancellable context for chatID. A turn already
// running for the chat is cancelled and replaced. release must be called
// when the turn ends; it only removes its own registration.
func (r *CancelRegistry) Register(parent context.Context, chatID string) (ctx context.Context, release func()) {
	ctx, cancel := context.WithCancel(parent)
	t := &runningTurn{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.turns[chatID]; ok {
		prev.cancel()
	}
	r.turns[chatID] = t
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		if r.turns[chatID] == t {
			delete(r.turns, chatID)
		}
		r.mu.Unlock()
		cancel()
	}
}

// Cancel stops the running turn of chatID and reports whether one was
// running.
func (r *CancelRegistry) Cancel(chatID string) bool {
	r.mu.Lock()
	t, ok := r.turns[chatID]
	r.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}

// Running reports whether a turn is registered for chatID.
func (r *CancelRegistry) Running(chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.turns[chatID]
	return ok
}
