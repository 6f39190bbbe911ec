// Package skills imports document-mode skills from yaml files into storage
// and keeps them in sync while the files change.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MaxNameLength bounds skill names, in runes.
const MaxNameLength = 100

// File is one skill definition on disk:
//
//	name: Earnings Review
//	description: Walk through the latest quarter
//	prompt: |
//	  Compare revenue and margins with the prior year...
type File struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"prompt"`

	// Path is the file the definition was read from.
	Path string `yaml:"-"`
}

// ParseFile reads and validates a skill file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSkillFileInvalid, err)
	}
	f, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	f.Path = path
	return f, nil
}

// ParseBytes parses yaml skill content.
func ParseBytes(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: yaml parse error: %v", ErrSkillFileInvalid, err)
	}
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Prompt = strings.TrimSpace(f.Prompt)

	switch {
	case f.Name == "":
		return nil, fmt.Errorf("%w: missing required field 'name'", ErrSkillFileInvalid)
	case utf8.RuneCountInString(f.Name) > MaxNameLength:
		return nil, fmt.Errorf("%w: name longer than %d characters", ErrSkillFileInvalid, MaxNameLength)
	case f.Prompt == "":
		return nil, fmt.Errorf("%w: missing required field 'prompt'", ErrSkillFileInvalid)
	}
	return &f, nil
}

// IsSkillFile reports whether path has a yaml extension.
func IsSkillFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(path), ".")
	}
	return false
}
