package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, name string) *store.User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), name, "hash")
	require.NoError(t, err)
	return u
}

func TestCreateRoomAddsOwnerMembershipAndReadState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "alice")

	room, err := s.CreateRoom(ctx, "general", "chit chat", owner.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, room.OwnerID)
	require.Equal(t, "chit chat", room.Description)

	member, err := s.IsMember(ctx, owner.ID, room.ID)
	require.NoError(t, err)
	require.True(t, member)

	rs, err := s.GetReadState(ctx, owner.ID, room.ID)
	require.NoError(t, err)
	require.Zero(t, rs.UnreadCount)
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "alice")

	_, err := s.CreateUser(context.Background(), "alice", "other")
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestGetRoomByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRoomByID(context.Background(), 42)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	room, err := s.CreateRoom(ctx, "general", "", owner.ID)
	require.NoError(t, err)

	require.NoError(t, s.AddMember(ctx, bob.ID, room.ID))
	require.NoError(t, s.IncrementUnread(ctx, room.ID, []int64{bob.ID}))
	require.NoError(t, s.AddMember(ctx, bob.ID, room.ID))

	members, err := s.ListMembers(ctx, room.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{owner.ID, bob.ID}, members)

	// Re-joining must not reset the existing read state.
	rs, err := s.GetReadState(ctx, bob.ID, room.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, rs.UnreadCount)

	require.NoError(t, s.RemoveMember(ctx, bob.ID, room.ID))
	isMember, err := s.IsMember(ctx, bob.ID, room.ID)
	require.NoError(t, err)
	require.False(t, isMember)
	_, err = s.GetReadState(ctx, bob.ID, room.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReadStateCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")
	room, err := s.CreateRoom(ctx, "general", "", owner.ID)
	require.NoError(t, err)
	require.NoError(t, s.AddMember(ctx, bob.ID, room.ID))
	require.NoError(t, s.AddMember(ctx, carol.ID, room.ID))

	require.NoError(t, s.IncrementUnread(ctx, room.ID, []int64{bob.ID, carol.ID}))
	require.NoError(t, s.IncrementUnread(ctx, room.ID, []int64{bob.ID}))

	before, err := s.GetReadState(ctx, carol.ID, room.ID)
	require.NoError(t, err)
	at := time.Now().UTC().Add(time.Minute)
	require.NoError(t, s.TouchLastRead(ctx, room.ID, []int64{carol.ID}, at))

	states, err := s.ListReadStates(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, states, 3)

	byUser := make(map[int64]*store.ReadState, len(states))
	for _, rs := range states {
		byUser[rs.UserID] = rs
	}
	require.EqualValues(t, 0, byUser[owner.ID].UnreadCount)
	require.EqualValues(t, 2, byUser[bob.ID].UnreadCount)
	require.EqualValues(t, 1, byUser[carol.ID].UnreadCount)
	require.True(t, byUser[carol.ID].LastReadAt.After(before.LastReadAt))

	require.NoError(t, s.MarkRead(ctx, bob.ID, room.ID, at))
	rs, err := s.GetReadState(ctx, bob.ID, room.ID)
	require.NoError(t, err)
	require.Zero(t, rs.UnreadCount)
	require.WithinDuration(t, at, rs.LastReadAt, time.Millisecond)

	require.ErrorIs(t, s.MarkRead(ctx, bob.ID, room.ID+1, at), store.ErrNotFound)
}

func TestReactionUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	room, err := s.CreateRoom(ctx, "general", "", alice.ID)
	require.NoError(t, err)

	msg := &store.Message{RoomID: room.ID, UserID: alice.ID, Content: "hi", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateMessage(ctx, msg, nil))

	require.NoError(t, s.CreateReaction(ctx, &store.Reaction{MessageID: msg.ID, UserID: alice.ID, Emoji: "👍"}))
	err = s.CreateReaction(ctx, &store.Reaction{MessageID: msg.ID, UserID: alice.ID, Emoji: "👍"})
	require.ErrorIs(t, err, store.ErrDuplicate)

	require.NoError(t, s.CreateReaction(ctx, &store.Reaction{MessageID: msg.ID, UserID: alice.ID, Emoji: "😂"}))
	require.NoError(t, s.CreateReaction(ctx, &store.Reaction{MessageID: msg.ID, UserID: bob.ID, Emoji: "👍"}))

	r, err := s.GetReaction(ctx, msg.ID, bob.ID, "👍")
	require.NoError(t, err)
	require.NoError(t, s.DeleteReaction(ctx, r.ID))
	_, err = s.GetReaction(ctx, msg.ID, bob.ID, "👍")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteMessageCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	room, err := s.CreateRoom(ctx, "general", "", alice.ID)
	require.NoError(t, err)

	att := &store.Attachment{Key: "k1", Filename: "cat.png", ContentType: "image/png", ByteSize: 10}
	require.NoError(t, s.CreateAttachment(ctx, att))

	parent := &store.Message{RoomID: room.ID, UserID: alice.ID, Content: "parent", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateMessage(ctx, parent, []int64{att.ID}))
	require.Len(t, parent.Attachments, 1)

	reply := &store.Message{RoomID: room.ID, UserID: alice.ID, Content: "reply", ParentMessageID: &parent.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateMessage(ctx, reply, nil))

	require.NoError(t, s.CreateReaction(ctx, &store.Reaction{MessageID: parent.ID, UserID: alice.ID, Emoji: "👍"}))

	require.NoError(t, s.DeleteMessage(ctx, parent.ID))

	_, err = s.GetMessage(ctx, parent.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetReaction(ctx, parent.ID, alice.ID, "👍")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetAttachmentByKey(ctx, "k1")
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetMessage(ctx, reply.ID)
	require.NoError(t, err)
	require.Nil(t, got.ParentMessageID)

	require.ErrorIs(t, s.DeleteMessage(ctx, parent.ID), store.ErrNotFound)
}

func TestCreateMessageRejectsClaimedAttachment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	room, err := s.CreateRoom(ctx, "general", "", alice.ID)
	require.NoError(t, err)

	att := &store.Attachment{Key: "k1", Filename: "cat.png", ContentType: "image/png", ByteSize: 10}
	require.NoError(t, s.CreateAttachment(ctx, att))

	first := &store.Message{RoomID: room.ID, UserID: alice.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateMessage(ctx, first, []int64{att.ID}))

	second := &store.Message{RoomID: room.ID, UserID: alice.ID, CreatedAt: time.Now().UTC()}
	err = s.CreateMessage(ctx, second, []int64{att.ID})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Zero(t, second.ID)
}

func TestUpdateMessageContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	room, err := s.CreateRoom(ctx, "general", "", alice.ID)
	require.NoError(t, err)

	msg := &store.Message{RoomID: room.ID, UserID: alice.ID, Content: "draft", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateMessage(ctx, msg, nil))

	require.NoError(t, s.UpdateMessageContent(ctx, msg.ID, "final", time.Now().UTC()))
	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, "final", got.Content)

	require.ErrorIs(t, s.UpdateMessageContent(ctx, msg.ID+100, "x", time.Now().UTC()), store.ErrNotFound)
}
