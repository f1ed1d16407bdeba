package blob

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

// Smallest valid PNG header, enough for content sniffing.
var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func newTestStore(t *testing.T, maxBytes int64) (*Store, *sqlite.SQLiteStore) {
	t.Helper()

	meta, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	s, err := Open(Options{InMemory: true, PublicURL: "http://chat.test/", MaxBytes: maxBytes}, meta, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, meta
}

func TestPutDetectsContentTypeAndServesBytes(t *testing.T) {
	s, _ := newTestStore(t, 1024)
	ctx := context.Background()

	a, err := s.Put(ctx, "cat.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	require.Equal(t, "image/png", a.ContentType)
	require.EqualValues(t, len(pngBytes), a.ByteSize)
	require.Nil(t, a.MessageID)

	got, data, err := s.Get(ctx, a.Key)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, pngBytes, data)

	require.Equal(t, "http://chat.test/attachments/"+a.Key, s.URL(a))
	require.Equal(t, s.URL(a), s.ThumbnailURL(a))

	resolved, err := s.Resolve(ctx, []int64{a.ID})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
}

func TestPutRejectsOversizedAndEmpty(t *testing.T) {
	s, _ := newTestStore(t, 8)
	ctx := context.Background()

	_, err := s.Put(ctx, "big.png", bytes.NewReader(pngBytes))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = s.Put(ctx, "empty.txt", bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrEmpty)
}

func TestTextUploadHasNoThumbnail(t *testing.T) {
	s, _ := newTestStore(t, 1024)

	a, err := s.Put(context.Background(), "notes.txt", bytes.NewReader([]byte("plain words")))
	require.NoError(t, err)
	require.Contains(t, a.ContentType, "text/plain")
	require.Empty(t, s.ThumbnailURL(a))
}

func TestGetUnknownKey(t *testing.T) {
	s, _ := newTestStore(t, 1024)

	_, _, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPruneRemovesBlobsOfDeletedMessages(t *testing.T) {
	s, meta := newTestStore(t, 1024)
	ctx := context.Background()

	owner, err := meta.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	room, err := meta.CreateRoom(ctx, "general", "", owner.ID)
	require.NoError(t, err)

	kept, err := s.Put(ctx, "kept.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	gone, err := s.Put(ctx, "gone.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	msg := &store.Message{RoomID: room.ID, UserID: owner.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, meta.CreateMessage(ctx, msg, []int64{gone.ID}))
	require.NoError(t, meta.DeleteMessage(ctx, msg.ID))

	removed, err := s.Prune(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, _, err = s.Get(ctx, kept.Key)
	require.NoError(t, err)
}
