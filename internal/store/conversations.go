package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	conversationColumns = "id, user_id, COALESCE(title, '') AS title, vector_id, created_at, updated_at"
	messageColumns      = "id, conversation_id, role, content, created_at"
)

// Conversation methods
func (s *Store) CreateConversation(ctx context.Context, userID int64, title string) (*Conversation, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.q("INSERT INTO conversations (user_id, title, created_at) VALUES (?, ?, ?) RETURNING id"),
		userID, title, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return &Conversation{ID: id, UserID: userID, Title: title, CreatedAt: now, Messages: []Message{}}, nil
}

// GetConversation returns the conversation only when it is owned by userID.
func (s *Store) GetConversation(ctx context.Context, id, userID int64) (*Conversation, error) {
	var conv Conversation
	err := s.db.GetContext(ctx, &conv,
		s.q("SELECT "+conversationColumns+" FROM conversations WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found or not owned
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// GetConversationByID skips the ownership check; background jobs only.
func (s *Store) GetConversationByID(ctx context.Context, id int64) (*Conversation, error) {
	var conv Conversation
	err := s.db.GetContext(ctx, &conv, s.q("SELECT "+conversationColumns+" FROM conversations WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (s *Store) ListConversationsByUser(ctx context.Context, userID int64, skip, limit int) ([]Conversation, error) {
	convs := []Conversation{}
	err := s.db.SelectContext(ctx, &convs,
		s.q("SELECT "+conversationColumns+" FROM conversations WHERE user_id = ? ORDER BY id LIMIT ? OFFSET ?"),
		userID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	for i := range convs {
		convs[i].Messages = []Message{}
	}
	return convs, nil
}

// ListConversationsByIDs returns the subset of ids owned by userID, in no particular order.
func (s *Store) ListConversationsByIDs(ctx context.Context, userID int64, ids []int64) ([]Conversation, error) {
	convs := []Conversation{}
	if len(ids) == 0 {
		return convs, nil
	}
	query, args, err := sqlx.In("SELECT "+conversationColumns+" FROM conversations WHERE user_id = ? AND id IN (?)", userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build conversation query: %w", err)
	}
	if err := s.db.SelectContext(ctx, &convs, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	return convs, nil
}

func (s *Store) ListConversationIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids, "SELECT id FROM conversations ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to query conversation ids: %w", err)
	}
	return ids, nil
}

func (s *Store) SetConversationVectorID(ctx context.Context, id int64, vectorID string) error {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE conversations SET vector_id = ?, updated_at = ? WHERE id = ?"),
		vectorID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update conversation vector id: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes an owned conversation and all of its messages in one transaction.
func (s *Store) DeleteConversation(ctx context.Context, id, userID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner int64
	err = tx.QueryRowxContext(ctx, s.q("SELECT user_id FROM conversations WHERE id = ?"), id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock conversation: %w", err)
	}
	if owner != userID {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, s.q("DELETE FROM conversation_messages WHERE conversation_id = ?"), id); err != nil {
		return fmt.Errorf("failed to delete conversation messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q("DELETE FROM conversations WHERE id = ?"), id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return tx.Commit()
}

// Message methods
func (s *Store) CreateMessage(ctx context.Context, msg *Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}
	msg.CreatedAt = time.Now().UTC()

	err := s.db.QueryRowxContext(ctx,
		s.q("INSERT INTO conversation_messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
		msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetMessagesByConversationID returns the transcript in chronological order.
func (s *Store) GetMessagesByConversationID(ctx context.Context, conversationID int64) ([]Message, error) {
	messages := []Message{}
	err := s.db.SelectContext(ctx, &messages,
		s.q("SELECT "+messageColumns+" FROM conversation_messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC"),
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return messages, nil
}

func (s *Store) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q("SELECT COUNT(*) FROM conversation_messages WHERE conversation_id = ?"), conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}
