package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Presence reports which users currently have a connection subscribed to a room.
type Presence interface {
	ConnectedUsers(roomID int64) map[int64]struct{}
}

// ReadTracker maintains per-member unread counters.
type ReadTracker struct {
	store    store.ReadStateStore
	presence Presence
	log      *zerolog.Logger
	now      func() time.Time
}

// NewReadTracker creates a tracker backed by st.
func NewReadTracker(st store.ReadStateStore, presence Presence, logger *zerolog.Logger) *ReadTracker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReadTracker{
		store:    st,
		presence: presence,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MarkRead creates the read state of userID in roomID if needed and resets it.
func (t *ReadTracker) MarkRead(ctx context.Context, userID, roomID int64) error {
	if err := t.store.EnsureReadState(ctx, userID, roomID); err != nil {
		return fmt.Errorf("ensure read state: %w", err)
	}
	if err := t.store.MarkRead(ctx, userID, roomID, t.now()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MessageCreated updates read states after authorID posted in roomID.
// The author is marked read, members watching the room get their last-read
// time refreshed and everyone else gets one more unread message.
func (t *ReadTracker) MessageCreated(ctx context.Context, roomID, authorID int64) error {
	states, err := t.store.ListReadStates(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list read states: %w", err)
	}

	connected := t.presence.ConnectedUsers(roomID)
	others := lo.FilterMap(states, func(rs *store.ReadState, _ int) (int64, bool) {
		return rs.UserID, rs.UserID != authorID
	})
	present, absent := lo.FilterReject(others, func(userID int64, _ int) bool {
		_, ok := connected[userID]
		return ok
	})

	if err := t.store.TouchLastRead(ctx, roomID, present, t.now()); err != nil {
		return fmt.Errorf("touch last read: %w", err)
	}
	if err := t.store.IncrementUnread(ctx, roomID, absent); err != nil {
		return fmt.Errorf("increment unread: %w", err)
	}

	t.log.Debug().
		Int64("room_id", roomID).
		Int("present", len(present)).
		Int("absent", len(absent)).
		Msg("read states updated")

	return t.MarkRead(ctx, authorID, roomID)
}
