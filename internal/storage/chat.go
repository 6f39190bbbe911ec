package storage

import (
	"context"
	"time"
)

// Chat is one conversation.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateChat 创建会话
func (db *DB) CreateChat(ctx context.Context, id, userID, title string) (*Chat, error) {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		"INSERT INTO chats (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, userID, title, now, now,
	)
	if err != nil {
		return nil, err
	}
	return &Chat{ID: id, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetChat 获取会话
func (db *DB) GetChat(ctx context.Context, id string) (*Chat, error) {
	c := &Chat{}
	err := db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM chats WHERE id = ?", id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// GetOwnedChat returns the chat if userID owns it.
func (db *DB) GetOwnedChat(ctx context.Context, id, userID string) (*Chat, error) {
	c, err := db.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	return c, nil
}

// ListChats 列出用户的会话，最近更新的在前
func (db *DB) ListChats(ctx context.Context, userID string) ([]*Chat, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM chats WHERE user_id = ? ORDER BY updated_at DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		c := &Chat{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// UpdateChatTitle 更新会话标题
func (db *DB) UpdateChatTitle(ctx context.Context, id, title string) error {
	res, err := db.ExecContext(ctx, "UPDATE chats SET title = ?, updated_at = ? WHERE id = ?", title, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteChat deletes a chat and its messages. Only the owner may delete it.
func (db *DB) DeleteChat(ctx context.Context, id, userID string) error {
	if _, err := db.GetOwnedChat(ctx, id, userID); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	return err
}

type rowsAffected interface{ RowsAffected() (int64, error) }

func requireRow(res rowsAffected) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
