package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ==== MessageStore implementation ====

// CreateMessage persists a message and claims the given attachments for it.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message, attachmentIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (room_id, user_id, content, parent_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.RoomID, msg.UserID, msg.Content, msg.ParentMessageID, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if len(attachmentIDs) > 0 {
		placeholders, args := inClause(attachmentIDs)
		claimed, err := tx.ExecContext(ctx, `
			UPDATE attachments SET message_id = ?
			WHERE message_id IS NULL AND id IN (`+placeholders+`)
		`, append([]any{id}, args...)...)
		if err != nil {
			return fmt.Errorf("claim attachments: %w", err)
		}
		n, err := claimed.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if n != int64(len(attachmentIDs)) {
			return fmt.Errorf("claim attachments: %w", store.ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	if len(attachmentIDs) > 0 {
		attachments, err := s.listMessageAttachments(ctx, id)
		if err != nil {
			return err
		}
		msg.Attachments = attachments
	}
	return nil
}

// GetMessage retrieves a message with its attachments.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, room_id, user_id, content, parent_message_id, created_at, updated_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	var parentID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.UserID,
		&msg.Content,
		&parentID,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	if parentID.Valid {
		msg.ParentMessageID = &parentID.Int64
	}

	attachments, err := s.listMessageAttachments(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.Attachments = attachments

	return &msg, nil
}

// UpdateMessageContent replaces the text of a message.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id int64, content string, updatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, updated_at = ?
		WHERE id = ?
	`, content, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// DeleteMessage removes a message. Reactions and attachments go with it via
// ON DELETE CASCADE; replies get their parent cleared via ON DELETE SET NULL.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) listMessageAttachments(ctx context.Context, messageID int64) ([]*store.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, blob_key, filename, content_type, byte_size, created_at
		FROM attachments
		WHERE message_id = ?
		ORDER BY id ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	return scanAttachments(rows)
}
