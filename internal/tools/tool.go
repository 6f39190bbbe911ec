// Package tools defines the Tool interface, the registry the model's tool
// list is built from, and the per-turn machinery that runs model-requested
// calls at most once.
package tools

import (
	"context"
	"encoding/json"
)

type contextKey string

const (
	chatIDKey contextKey = "chat_id"
	userIDKey contextKey = "user_id"
)

// WithChatID returns a new context with the chat ID attached.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey, chatID)
}

// ChatIDFromContext retrieves the chat ID from the context, if present.
func ChatIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(chatIDKey).(string)
	return id, ok
}

// WithUserID returns a new context with the calling user's ID attached.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the user ID from the context, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// Tool is a capability the model can invoke.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Parameters returns the JSON Schema for the tool's input parameters.
	Parameters() map[string]any

	// Execute runs the tool. Errors returned here are converted into error
	// results for the model; they never abort the turn.
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// LoadingMessager is implemented by tools that describe their work in the
// tool-loading start event.
type LoadingMessager interface {
	LoadingMessage(args map[string]any) string
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Content  string         `json:"content"`
	IsError  bool           `json:"is_error"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewSuccessResult creates a successful tool result with the given content.
func NewSuccessResult(content string) ToolResult {
	return ToolResult{Content: content}
}

// NewErrorResult creates an error tool result with the given message.
func NewErrorResult(errMsg string) ToolResult {
	return ToolResult{Content: errMsg, IsError: true}
}

// NewJSONResult marshals v as the result content.
func NewJSONResult(v any) (ToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Content: string(b)}, nil
}

// String returns the content sent back to the model.
func (r ToolResult) String() string {
	if r.IsError {
		return "[error] " + r.Content
	}
	return r.Content
}

// BaseTool provides Name, Description and Parameters for embedding.
type BaseTool struct {
	ToolName        string
	ToolDescription string
	ToolParameters  map[string]any
}

// Name returns the tool name.
func (t *BaseTool) Name() string {
	return t.ToolName
}

// Description returns the tool description.
func (t *BaseTool) Description() string {
	return t.ToolDescription
}

// Parameters returns the tool parameters schema.
func (t *BaseTool) Parameters() map[string]any {
	if t.ToolParameters == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return t.ToolParameters
}
