package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestToolResult(t *testing.T) {
	ok := NewSuccessResult("done")
	if ok.IsError || ok.String() != "done" {
		t.Errorf("unexpected success result: %+v", ok)
	}

	bad := NewErrorResult("boom")
	if !bad.IsError || bad.String() != "[error] boom" {
		t.Errorf("unexpected error result: %+v", bad)
	}

	js, err := NewJSONResult(map[string]any{"ticker": "AAPL"})
	if err != nil {
		t.Fatal(err)
	}
	if js.Content != `{"ticker":"AAPL"}` {
		t.Errorf("unexpected JSON content %q", js.Content)
	}

	if _, err := NewJSONResult(make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestBaseTool(t *testing.T) {
	bt := &BaseTool{ToolName: "x", ToolDescription: "does x"}
	if bt.Name() != "x" || bt.Description() != "does x" {
		t.Errorf("unexpected base tool: %+v", bt)
	}
	params := bt.Parameters()
	if params["type"] != "object" {
		t.Errorf("default parameters should be an object schema, got %v", params)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		err    error
		target error
	}{
		{NewToolNotFoundError("a"), ErrToolNotFound},
		{NewToolAlreadyExistsError("a"), ErrToolAlreadyExists},
		{NewInvalidArgsError("a", "bad", nil), ErrInvalidArgs},
		{NewToolExecutionError("a", errors.New("x")), ErrToolExecution},
	}
	for _, tt := range tests {
		if !errors.Is(fmt.Errorf("wrapped: %w", tt.err), tt.target) {
			t.Errorf("%v should match %v", tt.err, tt.target)
		}
	}

	cause := errors.New("dial refused")
	if !errors.Is(NewToolExecutionError("searchWeb", cause), cause) {
		t.Error("execution error should unwrap to its cause")
	}
	if !errors.Is(NewInvalidArgsError("a", "bad", cause), cause) {
		t.Error("invalid args error should unwrap to its cause")
	}
}

func TestContextIDs(t *testing.T) {
	ctx := WithUserID(WithChatID(context.Background(), "chat-1"), "user-1")
	if id, ok := ChatIDFromContext(ctx); !ok || id != "chat-1" {
		t.Errorf("chat id = %q, %v", id, ok)
	}
	if id, ok := UserIDFromContext(ctx); !ok || id != "user-1" {
		t.Errorf("user id = %q, %v", id, ok)
	}
	if _, ok := ChatIDFromContext(context.Background()); ok {
		t.Error("empty context should not carry a chat id")
	}
}

type mockTool struct {
	name        string
	description string
	params      map[string]any
	execFn      func(ctx context.Context, args map[string]any) (ToolResult, error)
}

func (m *mockTool) Name() string               { return m.name }
func (m *mockTool) Description() string        { return m.description }
func (m *mockTool) Parameters() map[string]any { return m.params }
func (m *mockTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	if m.execFn == nil {
		return NewSuccessResult(""), nil
	}
	return m.execFn(ctx, args)
}

func newMockTool(name string) *mockTool {
	return &mockTool{
		name:        name,
		description: name + " tool",
		params: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
		},
	}
}
