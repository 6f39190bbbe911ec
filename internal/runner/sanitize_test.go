package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"finch/internal/provider"
)

func assistantCall(ids ...string) provider.Message {
	m := provider.Message{Role: provider.RoleAssistant}
	for _, id := range ids {
		m.ToolCalls = append(m.ToolCalls, provider.ToolCall{ID: id, Name: "searchWeb", Arguments: `{}`})
	}
	return m
}

func toolResult(id, content string) provider.Message {
	return provider.Message{Role: provider.RoleTool, ToolCallID: id, Name: "searchWeb", Content: content}
}

func TestSanitize(t *testing.T) {
	answer := provider.Message{Role: provider.RoleAssistant, Content: "Answer."}

	tests := []struct {
		name string
		in   []provider.Message
		want []provider.Message
	}{
		{"empty", nil, []provider.Message{}},
		{"plain answer", []provider.Message{answer}, []provider.Message{answer}},
		{
			"answered call kept",
			[]provider.Message{assistantCall("c1"), toolResult("c1", "data"), answer},
			[]provider.Message{assistantCall("c1"), toolResult("c1", "data"), answer},
		},
		{
			"unanswered call dropped",
			[]provider.Message{assistantCall("c1"), toolResult("c1", "data"), assistantCall("c2")},
			[]provider.Message{assistantCall("c1"), toolResult("c1", "data")},
		},
		{
			"partially answered call dropped with its results",
			[]provider.Message{assistantCall("c1", "c2"), toolResult("c1", "data"), answer},
			[]provider.Message{answer},
		},
		{
			"blank assistant dropped",
			[]provider.Message{{Role: provider.RoleAssistant, Content: "  \n"}, answer},
			[]provider.Message{answer},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
