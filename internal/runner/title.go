package runner

import (
	"context"
	"strings"
	"unicode/utf8"

	"finch/internal/provider"
	"finch/pkg/logger"
)

// MaxTitleLength bounds chat titles, in runes.
const MaxTitleLength = 80

const titlePrompt = `You generate a short title for a conversation from the user's first message.
- The title must be at most 80 characters.
- Summarize what the user is asking about.
- Do not use quotes or colons.
- Reply with the title only.`

// GenerateTitle asks the model for a chat title. It falls back to the
// truncated message when the call fails or returns nothing.
func GenerateTitle(ctx context.Context, p provider.Provider, model, message string) string {
	fallback := CleanTitle(message)
	if p == nil {
		return fallback
	}
	resp, err := p.Chat(ctx, provider.ChatRequest{
		Model:     model,
		System:    titlePrompt,
		Messages:  []provider.Message{{Role: provider.RoleUser, Content: message}},
		MaxTokens: 40,
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Title generation failed")
		return fallback
	}
	if t := CleanTitle(resp.Content); t != "" {
		return t
	}
	return fallback
}

// CleanTitle strips quotes and colons, collapses whitespace and truncates
// to MaxTitleLength runes.
func CleanTitle(s string) string {
	s = strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "", ":", "", "：", "").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxTitleLength {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxTitleLength]))
}
