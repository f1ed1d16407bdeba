package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

type messageUpdatePayload struct {
	RoomID    int64  `json:"room_id" validate:"required,gt=0"`
	MessageID int64  `json:"message_id" validate:"required,gt=0"`
	Content   string `json:"content" validate:"max=4000"`
}

type messageUpdateHandler struct {
	hub *Hub
}

// Handle edits the content of a message. Edits by anyone but the author are ignored.
func (m *messageUpdateHandler) Handle(ctx context.Context, ac *ActionContext) error {
	h := m.hub

	var p messageUpdatePayload
	if err := h.decode(ac.Payload, &p); err != nil {
		return err
	}

	msg, err := h.roomMessage(ctx, ac.Room.ID, p.MessageID)
	if err != nil {
		return err
	}
	if msg.UserID != ac.Client.UserID {
		h.log.Debug().Int64("message_id", msg.ID).Int64("user_id", ac.Client.UserID).Msg("ignoring edit by non-author")
		return nil
	}
	if strings.TrimSpace(p.Content) == "" && len(msg.Attachments) == 0 {
		return validationError(ErrCodeInvalidMessage, "message must have content or attachments")
	}

	now := h.now()
	if err := h.store.UpdateMessageContent(ctx, msg.ID, p.Content, now); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	msg.Content = p.Content
	msg.UpdatedAt = now

	h.registry.Publish(RoomTopic(ac.Room.ID), &Event{
		Kind:      EventMessage,
		RoomID:    ac.Room.ID,
		Message:   h.messageView(msg, ac.Client.summary()),
		Timestamp: now,
	})
	return nil
}

// roomMessage loads a message and checks that it belongs to roomID.
func (h *Hub) roomMessage(ctx context.Context, roomID, messageID int64) (*store.Message, error) {
	msg, err := h.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationError(ErrCodeMessageNotFound, "message not found")
		}
		return nil, err
	}
	if msg.RoomID != roomID {
		return nil, validationError(ErrCodeMessageNotFound, "message not found")
	}
	return msg, nil
}
