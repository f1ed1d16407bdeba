package core

import (
	"context"
	"fmt"
)

type messageDeletePayload struct {
	RoomID    int64 `json:"room_id" validate:"required,gt=0"`
	MessageID int64 `json:"message_id" validate:"required,gt=0"`
}

type messageDeleteHandler struct {
	hub *Hub
}

// Handle deletes a message together with its reactions and attachments.
// Deletes by anyone but the author are ignored.
func (m *messageDeleteHandler) Handle(ctx context.Context, ac *ActionContext) error {
	h := m.hub

	var p messageDeletePayload
	if err := h.decode(ac.Payload, &p); err != nil {
		return err
	}

	msg, err := h.roomMessage(ctx, ac.Room.ID, p.MessageID)
	if err != nil {
		return err
	}
	if msg.UserID != ac.Client.UserID {
		h.log.Debug().Int64("message_id", msg.ID).Int64("user_id", ac.Client.UserID).Msg("ignoring delete by non-author")
		return nil
	}

	if err := h.store.DeleteMessage(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	h.registry.Publish(RoomTopic(ac.Room.ID), &Event{
		Kind:      EventMessageDeleted,
		RoomID:    ac.Room.ID,
		MessageID: msg.ID,
		Timestamp: h.now(),
	})
	return nil
}
