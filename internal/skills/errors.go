package skills

import "errors"

// Skill file errors.
var (
	// ErrSkillFileInvalid is returned when a skill file cannot be parsed or
	// misses required fields.
	ErrSkillFileInvalid = errors.New("invalid skill file")

	// ErrNoOwner is returned when imported skills have no owning user.
	ErrNoOwner = errors.New("skills owner not configured")
)
