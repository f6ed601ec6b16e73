package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const chatColumns = "id, owner_id, document_id, title, last_message_content, last_message_kind, last_message_created_at, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*Chat, error) {
	var chat Chat
	var content, kind sql.NullString
	var lastAt sql.NullTime
	if err := row.Scan(&chat.ID, &chat.OwnerID, &chat.DocumentID, &chat.Title, &content, &kind, &lastAt, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		return nil, err
	}
	if content.Valid {
		chat.LastMessageContent = &content.String
	}
	if kind.Valid {
		chat.LastMessageKind = &kind.String
	}
	if lastAt.Valid {
		chat.LastMessageCreatedAt = &lastAt.Time
	}
	return &chat, nil
}

// CreateChatWithMessage inserts a chat together with its first message and points
// the chat's last-message fields at it, all in one transaction.
func (s *Store) CreateChatWithMessage(ctx context.Context, chat *Chat, first *Message) error {
	now := time.Now().UTC()
	chat.ID = uuid.NewString()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx, "INSERT INTO chats (id, owner_id, document_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			chat.ID, chat.OwnerID, chat.DocumentID, chat.Title, chat.CreatedAt, chat.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert chat: %w", err)
		}
		first.ChatID = chat.ID
		return s.appendMessage(ctx, tx, chat, first)
	})
}

// AppendMessage inserts a message and updates the owning chat's last-message
// fields in the same transaction.
func (s *Store) AppendMessage(ctx context.Context, chat *Chat, msg *Message) error {
	msg.ChatID = chat.ID
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.appendMessage(ctx, tx, chat, msg)
	})
}

func (s *Store) appendMessage(ctx context.Context, tx *sql.Tx, chat *Chat, msg *Message) error {
	if msg.Kind != MessageKindUser && msg.Kind != MessageKindAI {
		return fmt.Errorf("invalid message kind %q", msg.Kind)
	}
	metadata, err := encodeJSONMap(msg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()

	_, err = s.exec(ctx, tx, "INSERT INTO messages (id, chat_id, kind, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ChatID, msg.Kind, msg.Content, metadata, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	res, err := s.exec(ctx, tx, "UPDATE chats SET last_message_content = ?, last_message_kind = ?, last_message_created_at = ?, updated_at = ? WHERE id = ?",
		msg.Content, msg.Kind, msg.CreatedAt, msg.CreatedAt, msg.ChatID)
	if err != nil {
		return fmt.Errorf("failed to update chat last message: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("chat %s: %w", msg.ChatID, ErrNotFound)
	}

	chat.LastMessageContent = &msg.Content
	chat.LastMessageKind = &msg.Kind
	chat.LastMessageCreatedAt = &msg.CreatedAt
	chat.UpdatedAt = msg.CreatedAt
	return nil
}

// GetChat returns the chat if it exists and is owned by ownerID.
func (s *Store) GetChat(ctx context.Context, chatID, ownerID string) (*Chat, error) {
	chat, err := scanChat(s.queryRow(ctx, "SELECT "+chatColumns+" FROM chats WHERE id = ? AND owner_id = ?", chatID, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

// ListChats returns the owner's chats, most recently active first.
func (s *Store) ListChats(ctx context.Context, ownerID string) ([]Chat, error) {
	rows, err := s.query(ctx, "SELECT "+chatColumns+" FROM chats WHERE owner_id = ? ORDER BY updated_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}
	return chats, nil
}

// ListMessages returns up to limit messages of a chat, newest first. A limit of
// zero or less returns the whole history.
func (s *Store) ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	query := "SELECT id, chat_id, kind, content, metadata, created_at FROM messages WHERE chat_id = ? ORDER BY created_at DESC"
	args := []any{chatID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var metadata sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Kind, &msg.Content, &metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if msg.Metadata, err = decodeJSONMap(metadata); err != nil {
			return nil, fmt.Errorf("failed to decode message metadata: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// GetChatDetail loads a chat with its document and newest-first messages. See
// ListMessages for messageLimit.
func (s *Store) GetChatDetail(ctx context.Context, chatID, ownerID string, messageLimit int) (*ChatDetail, error) {
	chat, err := s.GetChat(ctx, chatID, ownerID)
	if err != nil {
		return nil, err
	}
	doc, err := s.GetDocument(ctx, chat.DocumentID)
	if err != nil {
		return nil, err
	}
	messages, err := s.ListMessages(ctx, chatID, messageLimit)
	if err != nil {
		return nil, err
	}
	return &ChatDetail{Chat: chat, Document: doc, Messages: messages}, nil
}
