package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ==== ReactionStore implementation ====

// CreateReaction inserts a reaction; the UNIQUE (message_id, user_id, emoji) constraint rejects duplicates.
func (s *SQLiteStore) CreateReaction(ctx context.Context, r *store.Reaction) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES (?, ?, ?)
	`, r.MessageID, r.UserID, r.Emoji)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert reaction: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert reaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	r.ID = id
	return nil
}

// GetReaction finds the reaction of userID on messageID with emoji.
func (s *SQLiteStore) GetReaction(ctx context.Context, messageID, userID int64, emoji string) (*store.Reaction, error) {
	var r store.Reaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = ? AND user_id = ? AND emoji = ?
	`, messageID, userID, emoji).Scan(&r.ID, &r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reaction: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query reaction: %w", err)
	}
	return &r, nil
}

// DeleteReaction removes a reaction by ID.
func (s *SQLiteStore) DeleteReaction(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("reaction %d: %w", id, store.ErrNotFound)
	}
	return nil
}
