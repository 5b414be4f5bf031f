package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateConversation inserts a conversation with the sentinel title.
func (s *Store) CreateConversation(ctx context.Context, projectID string) (Conversation, error) {
	conv := Conversation{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     SentinelTitle,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, project_id, title, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.ProjectID, conv.Title, conv.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns a conversation by id, or ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var conv Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.ProjectID, &conv.Title, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// SetTitleIfSentinel writes the title only while the stored value still equals
// the sentinel. It reports whether the write took effect, so two racing runs
// cannot both title the same conversation.
func (s *Store) SetTitleIfSentinel(ctx context.Context, id, title string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND title = ?`,
		title, time.Now().UTC(), id, SentinelTitle)
	if err != nil {
		return false, fmt.Errorf("set title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TouchConversation bumps the updated_at timestamp.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
