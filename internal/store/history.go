package store

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/glide/internal/types"
)

// AddMessage appends one companion chat message for chatID.
func (s *Store) AddMessage(ctx context.Context, chatID string, role string, content string) error {
	query := `INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)`
	if _, err := s.DB.ExecContext(ctx, query, chatID, role, content); err != nil {
		return types.NewStorageError("add message", err)
	}
	return nil
}

// GetHistory returns the last limit messages for chatID in chronological order.
func (s *Store) GetHistory(ctx context.Context, chatID string, limit int) ([]llms.MessageContent, error) {
	query := `SELECT role, content FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, types.NewStorageError("get history", err)
	}
	defer rows.Close()

	var history []llms.MessageContent
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, types.NewStorageError("scan message", err)
		}

		var msgRole llms.ChatMessageType
		switch role {
		case "human":
			msgRole = llms.ChatMessageTypeHuman
		case "ai":
			msgRole = llms.ChatMessageTypeAI
		case "system":
			msgRole = llms.ChatMessageTypeSystem
		default:
			msgRole = llms.ChatMessageTypeHuman
		}

		history = append(history, llms.MessageContent{
			Role:  msgRole,
			Parts: []llms.ContentPart{llms.TextPart(content)},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("get history", err)
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}

func (s *Store) ClearHistory(ctx context.Context, chatID string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return types.NewStorageError("clear history", err)
	}
	return nil
}
