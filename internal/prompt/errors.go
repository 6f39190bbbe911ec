// Package prompt builds system prompts: the general-mode financial analyst
// prompt and the document-mode prompt assembled from project context and
// an optional skill.
package prompt

import "errors"

var (
	// ErrTemplateRender indicates that template rendering failed.
	ErrTemplateRender = errors.New("prompt: template render failed")

	// ErrProjectContext indicates the project context could not be loaded.
	ErrProjectContext = errors.New("prompt: project context unavailable")

	// ErrSkill indicates the skill could not be loaded.
	ErrSkill = errors.New("prompt: skill unavailable")
)
