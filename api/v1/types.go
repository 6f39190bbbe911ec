// Package v1 provides the finch HTTP API: chat streaming, history, projects
// and skills.
package v1

import (
	"finch/internal/provider"
	"finch/internal/storage"
)

// ChatMessage is one message of a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest starts a turn.
type ChatRequest struct {
	ID                      string        `json:"id"`
	Messages                []ChatMessage `json:"messages"`
	ModelID                 string        `json:"modelId"`
	ModelAPIKey             string        `json:"modelApiKey,omitempty"`
	FinancialDatasetsAPIKey string        `json:"financialDatasetsApiKey,omitempty"`
	Mode                    string        `json:"mode,omitempty"`
	ProjectID               string        `json:"projectId,omitempty"`
	SkillID                 string        `json:"skillId,omitempty"`
}

func (r ChatRequest) providerMessages() []provider.Message {
	out := make([]provider.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, provider.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// StopResponse reports whether a running turn was cancelled.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// KeysResponse tells the client which server-side keys are usable.
type KeysResponse struct {
	HasOpenAIKey            bool `json:"hasOpenAIKey"`
	HasFinancialDatasetsKey bool `json:"hasFinancialDatasetsKey"`
}

// ModelsResponse lists the selectable models.
type ModelsResponse struct {
	Models  []provider.Model `json:"models"`
	Default string           `json:"default"`
}

// HistoryResponse lists the caller's chats, most recent first.
type HistoryResponse struct {
	Chats []*storage.Chat `json:"chats"`
}

// MessagesResponse lists the messages of one chat.
type MessagesResponse struct {
	Messages []*storage.Message `json:"messages"`
}

// ProjectRequest creates or updates a project.
type ProjectRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ProjectsResponse lists projects.
type ProjectsResponse struct {
	Projects []*storage.Project `json:"projects"`
}

// SkillRequest creates or updates a skill.
type SkillRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt"`
}

// SkillsResponse lists skills.
type SkillsResponse struct {
	Skills []*storage.Skill `json:"skills"`
}
