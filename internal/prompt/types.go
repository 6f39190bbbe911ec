package prompt

import "context"

// PromptConfig holds configuration for the general-mode prompt builder.
type PromptConfig struct {
	AgentName           string   `json:"agent_name"`
	Timezone            string   `json:"timezone"`
	Constraints         []string `json:"constraints"`
	DisableSafetyPrompt bool     `json:"disable_safety_prompt"`
}

// DefaultPromptConfig returns a PromptConfig with default values.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		AgentName: "Finch",
		Timezone:  "UTC",
	}
}

// PromptData holds all data for template rendering.
type PromptData struct {
	AgentName   string
	Tools       []ToolInfo
	CurrentDate string
	Constraints []string
}

// ToolInfo holds information about a tool for prompt rendering.
type ToolInfo struct {
	Name        string
	Description string
}

// Skill is the part of a stored skill the assembler needs.
type Skill struct {
	Name   string
	Prompt string
}

// ProjectLoader loads the raw project content blob.
type ProjectLoader interface {
	ProjectContent(ctx context.Context, projectID string) (string, error)
}

// SkillLoader loads a skill by id.
type SkillLoader interface {
	SkillByID(ctx context.Context, skillID string) (*Skill, error)
}
