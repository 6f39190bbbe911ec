package prompt

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"finch/internal/tools"
)

var generalTemplates = []*template.Template{
	template.Must(template.New("identity").Parse(generalIdentityTemplate)),
	template.Must(template.New("capabilities").Parse(capabilitiesTemplate)),
	template.Must(template.New("constraints").Parse(constraintsTemplate)),
}

// SystemPromptBuilder builds the general-mode system prompt from the tools
// available to the turn.
type SystemPromptBuilder struct {
	config   PromptConfig
	registry *tools.Registry
	now      func() time.Time
}

// NewSystemPromptBuilder creates a new SystemPromptBuilder. registry may be nil.
func NewSystemPromptBuilder(config PromptConfig, registry *tools.Registry) *SystemPromptBuilder {
	if config.AgentName == "" {
		config.AgentName = "Finch"
	}
	if config.Timezone == "" {
		config.Timezone = "UTC"
	}
	return &SystemPromptBuilder{config: config, registry: registry, now: time.Now}
}

// Build renders the prompt.
func (b *SystemPromptBuilder) Build() (string, error) {
	return b.render(b.prepareData())
}

func (b *SystemPromptBuilder) prepareData() PromptData {
	now := b.now()
	if loc, err := time.LoadLocation(b.config.Timezone); err == nil {
		now = now.In(loc)
	}
	data := PromptData{
		AgentName:   b.config.AgentName,
		CurrentDate: now.Format("2006-01-02"),
		Constraints: b.config.Constraints,
	}
	if b.registry != nil {
		for _, t := range b.registry.List() {
			data.Tools = append(data.Tools, ToolInfo{Name: t.Name(), Description: t.Description()})
		}
	}
	return data
}

func (b *SystemPromptBuilder) render(data PromptData) (string, error) {
	var result bytes.Buffer
	for _, tmpl := range generalTemplates {
		if err := tmpl.Execute(&result, data); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrTemplateRender, tmpl.Name(), err)
		}
	}
	if !b.config.DisableSafetyPrompt {
		result.WriteString("\n")
		result.WriteString(SafetyRulesPrompt)
	}
	return result.String(), nil
}
