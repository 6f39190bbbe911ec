package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ToolCall 工具调用
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message 消息实体
type Message struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chatId"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	Name       string     `json:"name,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// SaveMessages inserts msgs in one transaction. Messages keep their order:
// each is stamped one microsecond after the previous one. Zero CreatedAt
// values are filled in.
func (db *DB) SaveMessages(ctx context.Context, chatID string, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		base := time.Now().UTC()
		for i, m := range msgs {
			m.ChatID = chatID
			if m.CreatedAt.IsZero() {
				m.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
			}
			if err := insertMessage(ctx, tx, m); err != nil {
				return fmt.Errorf("insert message %s: %w", m.ID, err)
			}
		}
		_, err := tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", time.Now().UTC(), chatID)
		return err
	})
}

func insertMessage(ctx context.Context, tx *sql.Tx, m *Message) error {
	var toolCalls, toolCallID, name *string
	if len(m.ToolCalls) > 0 {
		data, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return err
		}
		s := string(data)
		toolCalls = &s
	}
	if m.ToolCallID != "" {
		toolCallID = &m.ToolCallID
	}
	if m.Name != "" {
		name = &m.Name
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO messages (id, chat_id, role, content, tool_calls, tool_call_id, name, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.ChatID, m.Role, m.Content, toolCalls, toolCallID, name, m.CreatedAt,
	)
	return err
}

// ListMessages 获取会话的全部消息，按时间排序
func (db *DB) ListMessages(ctx context.Context, chatID string) ([]*Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, tool_calls, tool_call_id, name, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at ASC, rowid ASC`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		var toolCalls, toolCallID, name sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &toolCalls, &toolCallID, &name, &m.CreatedAt); err != nil {
			return nil, err
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls of %s: %w", m.ID, err)
			}
		}
		m.ToolCallID = toolCallID.String
		m.Name = name.String
		out = append(out, m)
	}
	return out, rows.Err()
}
