package server

import (
	"context"

	"finch/internal/prompt"
	"finch/internal/storage"
	"finch/internal/tools"
)

// ownedContent serves projects and skills to the prompt assembler, limited
// to the turn's user. A record owned by someone else reads as missing.
type ownedContent struct {
	db *storage.DB
}

func (o ownedContent) ProjectContent(ctx context.Context, id string) (string, error) {
	p, err := o.db.GetProject(ctx, id)
	if err != nil {
		return "", err
	}
	if !ownedBy(ctx, p.UserID) {
		return "", storage.ErrNotFound
	}
	return p.Content, nil
}

func (o ownedContent) SkillByID(ctx context.Context, id string) (*prompt.Skill, error) {
	s, err := o.db.GetSkill(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownedBy(ctx, s.UserID) {
		return nil, storage.ErrNotFound
	}
	return &prompt.Skill{Name: s.Name, Prompt: s.Prompt}, nil
}

func ownedBy(ctx context.Context, owner string) bool {
	uid, ok := tools.UserIDFromContext(ctx)
	return ok && uid == owner
}
