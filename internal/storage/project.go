package storage

import (
	"context"
	"errors"
	"time"
)

// Project is a document workspace. Content holds the editor text followed
// by the serialized attachments.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveProject creates the project or updates name and content of an
// existing one owned by p.UserID.
func (db *DB) SaveProject(ctx context.Context, p *Project) error {
	existing, err := db.GetProject(ctx, p.ID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	case existing.UserID != p.UserID:
		return ErrForbidden
	}

	now := time.Now().UTC()
	if existing == nil {
		p.CreatedAt = now
	} else {
		p.CreatedAt = existing.CreatedAt
	}
	p.UpdatedAt = now
	_, err = db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, content = excluded.content, updated_at = excluded.updated_at`,
		p.ID, p.UserID, p.Name, p.Content, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetProject 获取项目
func (db *DB) GetProject(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	err := db.QueryRowContext(ctx,
		"SELECT id, user_id, name, content, created_at, updated_at FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ProjectContent returns the raw content blob of a project.
func (db *DB) ProjectContent(ctx context.Context, id string) (string, error) {
	p, err := db.GetProject(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Content, nil
}

// ListProjects 列出用户的项目
func (db *DB) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, user_id, name, content, created_at, updated_at FROM projects WHERE user_id = ? ORDER BY updated_at DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject 删除项目，仅限所有者
func (db *DB) DeleteProject(ctx context.Context, id, userID string) error {
	p, err := db.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return ErrForbidden
	}
	_, err = db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}
