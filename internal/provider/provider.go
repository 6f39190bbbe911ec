// Package provider defines the model provider interface used by the turn
// pipeline and the catalog of models a client may select.
package provider

import "context"

// Provider streams chat completions from one hosted model API.
type Provider interface {
	// Name returns the provider name (openai, deepseek, google).
	Name() string

	// Chat sends a request and waits for the full response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Stream sends a request and returns a channel of events. The channel is
	// closed after a done or error event, or when ctx is cancelled.
	Stream(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
}

// Factory builds a Provider for a catalog model and an API key.
type Factory func(m Model, apiKey string) (Provider, error)

// Collect drains a stream into a ChatResponse. Used where a caller needs
// the whole answer but the provider only exposes streaming.
func Collect(ctx context.Context, events <-chan ChatEvent) (*ChatResponse, error) {
	resp := &ChatResponse{}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return resp, nil
			}
			switch ev.Type {
			case EventTypeContent:
				resp.Content += ev.Delta
			case EventTypeToolCall:
				if ev.ToolCall != nil {
					resp.ToolCalls = append(resp.ToolCalls, *ev.ToolCall)
				}
			case EventTypeDone:
				resp.FinishReason = ev.FinishReason
				resp.Usage = ev.Usage
				return resp, nil
			case EventTypeError:
				return nil, ev.Error
			}
		}
	}
}
