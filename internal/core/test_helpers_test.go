package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails if an event of kind is queued on ch. Dispatch is synchronous,
// so anything that would be delivered is already in the channel. Other events
// are put back in order for later assertions.
func noEvent(t *testing.T, ch chan *Event, kind EventKind) {
	t.Helper()

	var queued []*Event
	for drained := false; !drained; {
		select {
		case ev := <-ch:
			queued = append(queued, ev)
		default:
			drained = true
		}
	}
	for _, ev := range queued {
		if ev != nil && ev.Kind == kind {
			t.Fatalf("unexpected event kind %v: %+v", kind, ev)
		}
	}
	for _, ev := range queued {
		ch <- ev
	}
}

type fakeAttachments struct {
	st store.AttachmentStore
}

func (f *fakeAttachments) Resolve(ctx context.Context, ids []int64) ([]*store.Attachment, error) {
	return f.st.GetAttachments(ctx, ids)
}

func (f *fakeAttachments) URL(a *store.Attachment) string {
	return "/attachments/" + a.Key
}

func (f *fakeAttachments) ThumbnailURL(a *store.Attachment) string {
	return "/attachments/" + a.Key + "?variant=thumb"
}

type fixture struct {
	ctx   context.Context
	hub   *Hub
	store *sqlite.SQLiteStore
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return &fixture{
		ctx:   context.Background(),
		hub:   NewHub(st, &fakeAttachments{st: st}, opts, nil, nil),
		store: st,
	}
}

func (f *fixture) user(t *testing.T, name string) *store.User {
	t.Helper()

	u, err := f.store.CreateUser(f.ctx, name, "hash")
	require.NoError(t, err)
	return u
}

func (f *fixture) room(t *testing.T, owner *store.User, members ...*store.User) *store.Room {
	t.Helper()

	room, err := f.store.CreateRoom(f.ctx, "room-"+uuid.NewString()[:8], "", owner.ID)
	require.NoError(t, err)
	for _, m := range members {
		require.NoError(t, f.store.AddMember(f.ctx, m.ID, room.ID))
	}
	return room
}

func (f *fixture) connect(t *testing.T, u *store.User) *Client {
	t.Helper()

	c := NewClient(uuid.NewString(), u.ID, u.Username, 64)
	f.hub.RegisterClient(c)
	t.Cleanup(func() { f.hub.UnregisterClient(c) })
	return c
}

func (f *fixture) subscribe(t *testing.T, c *Client, roomID int64) {
	t.Helper()

	require.NoError(t, f.hub.Subscribe(f.ctx, c, roomID))
	ev := mustEvent(t, c.Events, EventConfirmSubscription)
	require.Equal(t, roomID, ev.RoomID)
}

func (f *fixture) attachment(t *testing.T, contentType string, size int64) *store.Attachment {
	t.Helper()

	a := &store.Attachment{
		Key:         uuid.NewString(),
		Filename:    "file-" + uuid.NewString()[:4],
		ContentType: contentType,
		ByteSize:    size,
	}
	require.NoError(t, f.store.CreateAttachment(f.ctx, a))
	return a
}

func (f *fixture) readState(t *testing.T, userID, roomID int64) *store.ReadState {
	t.Helper()

	rs, err := f.store.GetReadState(f.ctx, userID, roomID)
	require.NoError(t, err)
	return rs
}
