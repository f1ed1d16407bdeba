package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// AllowedEmoji is the fixed set of reactions.
var AllowedEmoji = []string{"👍", "❤️", "😂", "😮", "😢", "😡"}

type reactionPayload struct {
	RoomID    int64  `json:"room_id" validate:"required,gt=0"`
	MessageID int64  `json:"message_id" validate:"required,gt=0"`
	Emoji     string `json:"emoji" validate:"required"`
}

type reactionCreateHandler struct {
	hub *Hub
}

func (r *reactionCreateHandler) Handle(ctx context.Context, ac *ActionContext) error {
	h := r.hub

	var p reactionPayload
	if err := h.decode(ac.Payload, &p); err != nil {
		return err
	}
	if !lo.Contains(AllowedEmoji, p.Emoji) {
		return validationError(ErrCodeInvalidEmoji, "emoji is not allowed")
	}

	msg, err := h.roomMessage(ctx, ac.Room.ID, p.MessageID)
	if err != nil {
		return err
	}

	reaction := &store.Reaction{
		MessageID: msg.ID,
		UserID:    ac.Client.UserID,
		Emoji:     p.Emoji,
		CreatedAt: h.now(),
	}
	if err := h.store.CreateReaction(ctx, reaction); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return validationError(ErrCodeDuplicateReaction, "user has already reacted with this emoji")
		}
		return fmt.Errorf("create reaction: %w", err)
	}

	user := ac.Client.summary()
	h.registry.Publish(RoomTopic(ac.Room.ID), &Event{
		Kind:      EventReactionCreated,
		RoomID:    ac.Room.ID,
		MessageID: msg.ID,
		Emoji:     p.Emoji,
		User:      &user,
		Timestamp: reaction.CreatedAt,
	})
	return nil
}
