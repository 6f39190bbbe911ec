package runner

import (
	"strings"

	"finch/internal/provider"
)

// Sanitize removes what must not be persisted from a turn's response
// messages: assistant messages with a tool call that never got a result,
// the tool results that belong to them, and assistant messages with
// neither text nor tool calls. Order is preserved.
func Sanitize(msgs []provider.Message) []provider.Message {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == provider.RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}

	dropped := make(map[string]bool)
	keepAssistant := func(m provider.Message) bool {
		if len(m.ToolCalls) == 0 {
			return strings.TrimSpace(m.Content) != ""
		}
		for _, tc := range m.ToolCalls {
			if !answered[tc.ID] {
				return false
			}
		}
		return true
	}

	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == provider.RoleAssistant && !keepAssistant(m) {
			for _, tc := range m.ToolCalls {
				dropped[tc.ID] = true
			}
			continue
		}
		out = append(out, m)
	}

	if len(dropped) == 0 {
		return out
	}
	kept := out[:0]
	for _, m := range out {
		if m.Role == provider.RoleTool && dropped[m.ToolCallID] {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
