package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ==== AttachmentStore implementation ====

// CreateAttachment stores metadata of an uploaded, not yet attached file.
func (s *SQLiteStore) CreateAttachment(ctx context.Context, a *store.Attachment) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (blob_key, filename, content_type, byte_size)
		VALUES (?, ?, ?, ?)
	`, a.Key, a.Filename, a.ContentType, a.ByteSize)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert attachment: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

// GetAttachments retrieves attachments by IDs. Missing IDs are skipped.
func (s *SQLiteStore) GetAttachments(ctx context.Context, ids []int64) ([]*store.Attachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, blob_key, filename, content_type, byte_size, created_at
		FROM attachments
		WHERE id IN (`+placeholders+`)
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	return scanAttachments(rows)
}

// GetAttachmentByKey retrieves an attachment by its blob key.
func (s *SQLiteStore) GetAttachmentByKey(ctx context.Context, key string) (*store.Attachment, error) {
	var a store.Attachment
	var messageID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, blob_key, filename, content_type, byte_size, created_at
		FROM attachments
		WHERE blob_key = ?
	`, key).Scan(&a.ID, &messageID, &a.Key, &a.Filename, &a.ContentType, &a.ByteSize, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attachment: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query attachment: %w", err)
	}
	if messageID.Valid {
		a.MessageID = &messageID.Int64
	}
	return &a, nil
}

func scanAttachments(rows *sql.Rows) ([]*store.Attachment, error) {
	var attachments []*store.Attachment
	for rows.Next() {
		var a store.Attachment
		var messageID sql.NullInt64
		if err := rows.Scan(&a.ID, &messageID, &a.Key, &a.Filename, &a.ContentType, &a.ByteSize, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		if messageID.Valid {
			a.MessageID = &messageID.Int64
		}
		attachments = append(attachments, &a)
	}
	return attachments, rows.Err()
}
