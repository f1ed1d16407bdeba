package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

type reactionDeleteHandler struct {
	hub *Hub
}

// Handle removes the requester's own reaction. Other users' reactions are never touched.
func (r *reactionDeleteHandler) Handle(ctx context.Context, ac *ActionContext) error {
	h := r.hub

	var p reactionPayload
	if err := h.decode(ac.Payload, &p); err != nil {
		return err
	}

	msg, err := h.roomMessage(ctx, ac.Room.ID, p.MessageID)
	if err != nil {
		return err
	}

	reaction, err := h.store.GetReaction(ctx, msg.ID, ac.Client.UserID, p.Emoji)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return validationError(ErrCodeReactionNotFound, "reaction not found")
		}
		return err
	}
	if err := h.store.DeleteReaction(ctx, reaction.ID); err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}

	h.registry.Publish(RoomTopic(ac.Room.ID), &Event{
		Kind:      EventReactionDeleted,
		RoomID:    ac.Room.ID,
		MessageID: msg.ID,
		Emoji:     p.Emoji,
		UserID:    ac.Client.UserID,
		Timestamp: h.now(),
	})
	return nil
}
