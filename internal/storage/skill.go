package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Skill sources.
const (
	SkillSourceUser    = "user"
	SkillSourceDefault = "default"
	SkillSourceFile    = "file"
)

// Skill is a reusable document-mode instruction.
type Skill struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Prompt      string    `json:"prompt"`
	IsSystem    bool      `json:"isSystem"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const skillColumns = "id, user_id, name, description, prompt, is_system, source, created_at, updated_at"

type scanner interface{ Scan(dest ...any) error }

func scanSkill(row scanner) (*Skill, error) {
	s := &Skill{}
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Description, &s.Prompt, &s.IsSystem, &s.Source, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// SaveSkill creates or updates a skill. A skill with the same name for the
// same user is updated in place, so re-importing a file is idempotent.
func (db *DB) SaveSkill(ctx context.Context, s *Skill) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Source == "" {
		s.Source = SkillSourceUser
	}
	if existing, err := db.GetSkill(ctx, s.ID); err == nil && existing.UserID != s.UserID {
		return ErrForbidden
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	now := time.Now().UTC()
	s.UpdatedAt = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO skills (`+skillColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, name) DO UPDATE SET description = excluded.description, prompt = excluded.prompt,
		   source = excluded.source, updated_at = excluded.updated_at
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description,
		   prompt = excluded.prompt, updated_at = excluded.updated_at`,
		s.ID, s.UserID, s.Name, s.Description, s.Prompt, s.IsSystem, s.Source, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	// A name conflict updates the existing row, which keeps its id.
	return db.QueryRowContext(ctx, "SELECT id, created_at FROM skills WHERE user_id = ? AND name = ?", s.UserID, s.Name).
		Scan(&s.ID, &s.CreatedAt)
}

// GetSkill 获取技能
func (db *DB) GetSkill(ctx context.Context, id string) (*Skill, error) {
	s, err := scanSkill(db.QueryRowContext(ctx, "SELECT "+skillColumns+" FROM skills WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// ListSkills 列出用户的技能，系统技能在前
func (db *DB) ListSkills(ctx context.Context, userID string) ([]*Skill, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+skillColumns+" FROM skills WHERE user_id = ? ORDER BY is_system DESC, created_at ASC, name ASC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Skill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSkill 删除技能，仅限所有者
func (db *DB) DeleteSkill(ctx context.Context, id, userID string) error {
	s, err := db.GetSkill(ctx, id)
	if err != nil {
		return err
	}
	if s.UserID != userID {
		return ErrForbidden
	}
	_, err = db.ExecContext(ctx, "DELETE FROM skills WHERE id = ?", id)
	return err
}

// ListSkillsOrSeed lists the user's skills, first seeding DefaultSkills
// when the user has none.
func (db *DB) ListSkillsOrSeed(ctx context.Context, userID string) ([]*Skill, error) {
	skills, err := db.ListSkills(ctx, userID)
	if err != nil || len(skills) > 0 {
		return skills, err
	}
	for _, d := range DefaultSkills() {
		d.UserID = userID
		if err := db.SaveSkill(ctx, d); err != nil {
			return nil, err
		}
	}
	return db.ListSkills(ctx, userID)
}
