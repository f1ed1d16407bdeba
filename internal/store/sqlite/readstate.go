package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ==== ReadStateStore implementation ====

// EnsureReadState creates the read state if it does not exist yet.
func (s *SQLiteStore) EnsureReadState(ctx context.Context, userID, roomID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO room_read_states (user_id, room_id, last_read_at, unread_count)
		VALUES (?, ?, ?, 0)
	`, userID, roomID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert read state: %w", err)
	}
	return nil
}

// GetReadState retrieves the read state of a user in a room.
func (s *SQLiteStore) GetReadState(ctx context.Context, userID, roomID int64) (*store.ReadState, error) {
	var rs store.ReadState
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, room_id, last_read_at, unread_count
		FROM room_read_states
		WHERE user_id = ? AND room_id = ?
	`, userID, roomID).Scan(&rs.UserID, &rs.RoomID, &rs.LastReadAt, &rs.UnreadCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("read state: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query read state: %w", err)
	}
	return &rs, nil
}

// ListReadStates lists every read state of a room.
func (s *SQLiteStore) ListReadStates(ctx context.Context, roomID int64) ([]*store.ReadState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, room_id, last_read_at, unread_count
		FROM room_read_states
		WHERE room_id = ?
		ORDER BY user_id ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query read states: %w", err)
	}
	defer rows.Close()

	var states []*store.ReadState
	for rows.Next() {
		var rs store.ReadState
		if err := rows.Scan(&rs.UserID, &rs.RoomID, &rs.LastReadAt, &rs.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan read state: %w", err)
		}
		states = append(states, &rs)
	}
	return states, rows.Err()
}

// MarkRead zeroes the unread counter and sets last_read_at.
func (s *SQLiteStore) MarkRead(ctx context.Context, userID, roomID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE room_read_states SET unread_count = 0, last_read_at = ?
		WHERE user_id = ? AND room_id = ?
	`, at, userID, roomID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("read state: %w", store.ErrNotFound)
	}
	return nil
}

// TouchLastRead sets last_read_at for the given users without touching counters.
func (s *SQLiteStore) TouchLastRead(ctx context.Context, roomID int64, userIDs []int64, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	placeholders, args := inClause(userIDs)
	_, err := s.db.ExecContext(ctx, `
		UPDATE room_read_states SET last_read_at = ?
		WHERE room_id = ? AND user_id IN (`+placeholders+`)
	`, append([]any{at, roomID}, args...)...)
	if err != nil {
		return fmt.Errorf("touch last read: %w", err)
	}
	return nil
}

// IncrementUnread bumps the unread counter of the given users by one.
func (s *SQLiteStore) IncrementUnread(ctx context.Context, roomID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	placeholders, args := inClause(userIDs)
	_, err := s.db.ExecContext(ctx, `
		UPDATE room_read_states SET unread_count = unread_count + 1
		WHERE room_id = ? AND user_id IN (`+placeholders+`)
	`, append([]any{roomID}, args...)...)
	if err != nil {
		return fmt.Errorf("increment unread: %w", err)
	}
	return nil
}
