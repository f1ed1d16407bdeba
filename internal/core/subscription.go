package core

import (
	"context"
	"errors"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Subscribe joins c to roomID after checking membership. On success the
// subscriber receives a confirmation; on failure it receives a rejection and
// the error is returned.
func (h *Hub) Subscribe(ctx context.Context, c *Client, roomID int64) error {
	err := h.subscribe(ctx, c, roomID)
	if err == nil {
		h.registry.Send(c, &Event{Kind: EventConfirmSubscription, RoomID: roomID, Timestamp: h.now()})
		h.log.Info().Str("client", c.ID).Int64("user_id", c.UserID).Int64("room_id", roomID).Msg("subscribed")
		return nil
	}

	var coreErr *CoreError
	if !errors.As(err, &coreErr) {
		h.log.Error().Err(err).Str("client", c.ID).Int64("room_id", roomID).Msg("subscribe failed")
		coreErr = subscriptionError(ErrCodeInternal, "subscription failed")
	}
	h.registry.Send(c, &Event{Kind: EventRejectSubscription, RoomID: roomID, Error: coreErr, Timestamp: h.now()})
	return coreErr
}

func (h *Hub) subscribe(ctx context.Context, c *Client, roomID int64) error {
	if !h.registry.Active(c) {
		return subscriptionError(ErrCodeConnectionClosed, "connection closed")
	}

	room, err := h.store.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return subscriptionError(ErrCodeRoomNotFound, "room not found")
		}
		return err
	}

	member, err := h.store.IsMember(ctx, c.UserID, room.ID)
	if err != nil {
		return err
	}
	if !member {
		return subscriptionError(ErrCodeNotAuthorized, "user is not a member of this room")
	}

	if !h.registry.Attach(c, room.ID) {
		return subscriptionError(ErrCodeConnectionClosed, "connection closed")
	}
	if err := h.tracker.MarkRead(ctx, c.UserID, room.ID); err != nil {
		h.registry.Detach(c)
		return err
	}
	return nil
}

// Unsubscribe removes c from its room. Calling it again is a no-op.
func (h *Hub) Unsubscribe(c *Client) {
	roomID, ok := h.registry.Detach(c)
	if !ok {
		return
	}
	h.log.Info().Str("client", c.ID).Int64("user_id", c.UserID).Int64("room_id", roomID).Msg("unsubscribed")
}

// Revoke detaches every connection userID has subscribed to roomID, telling
// each one it lost access. Call it once the membership is gone.
func (h *Hub) Revoke(userID, roomID int64) int {
	detached := h.registry.DetachUser(userID, roomID)
	for _, c := range detached {
		h.registry.Send(c, &Event{
			Kind:      EventRejectSubscription,
			RoomID:    roomID,
			Error:     subscriptionError(ErrCodeNotAuthorized, "user is no longer a member of this room"),
			Timestamp: h.now(),
		})
	}
	if len(detached) > 0 {
		h.log.Info().Int64("user_id", userID).Int64("room_id", roomID).Int("connections", len(detached)).Msg("membership revoked")
	}
	return len(detached)
}
