// Package blob keeps uploaded attachment bytes in badger and their metadata in the relational store.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

const keyPrefix = "blob:"

var (
	// ErrTooLarge is returned when an upload exceeds the configured size.
	ErrTooLarge = errors.New("file too large")
	// ErrEmpty is returned for zero-byte uploads.
	ErrEmpty = errors.New("file is empty")
)

// Options configure the blob store.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// PublicURL prefixes generated attachment URLs, e.g. "https://chat.example.com".
	PublicURL string
	MaxBytes  int64
}

// Store implements core.AttachmentResolver on top of badger.
type Store struct {
	db        *badger.DB
	meta      store.AttachmentStore
	publicURL string
	maxBytes  int64
	log       *zerolog.Logger
}

// Open opens the badger database described by opts.
func Open(opts Options, meta store.AttachmentStore, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(badgerLogger{log: logger}).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Store{
		db:        db,
		meta:      meta,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		maxBytes:  opts.MaxBytes,
		log:       logger,
	}, nil
}

// Close closes the badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the content of r and records an unattached attachment for it.
// The content type is detected from the bytes, not taken from the client.
func (s *Store) Put(ctx context.Context, filename string, r io.Reader) (*store.Attachment, error) {
	limit := s.maxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}

	a := &store.Attachment{
		Key:         uuid.NewString(),
		Filename:    filename,
		ContentType: mimetype.Detect(data).String(),
		ByteSize:    int64(len(data)),
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(a.Key), data)
	}); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	if err := s.meta.CreateAttachment(ctx, a); err != nil {
		if delErr := s.delete(a.Key); delErr != nil {
			s.log.Error().Err(delErr).Str("key", a.Key).Msg("remove orphan blob")
		}
		return nil, fmt.Errorf("save attachment: %w", err)
	}

	s.log.Debug().Str("key", a.Key).Str("content_type", a.ContentType).Int64("bytes", a.ByteSize).Msg("attachment stored")
	return a, nil
}

// Get returns the attachment stored under key with its bytes.
func (s *Store) Get(ctx context.Context, key string) (*store.Attachment, []byte, error) {
	a, err := s.meta.GetAttachmentByKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("blob %s: %w", key, store.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}
	return a, data, nil
}

// Resolve loads attachment metadata by IDs.
func (s *Store) Resolve(ctx context.Context, ids []int64) ([]*store.Attachment, error) {
	return s.meta.GetAttachments(ctx, ids)
}

// URL returns the download URL of a.
func (s *Store) URL(a *store.Attachment) string {
	return s.publicURL + "/attachments/" + a.Key
}

// ThumbnailURL returns the preview URL of an image attachment, empty for other media.
// Images are served as-is; there is no resizing.
func (s *Store) ThumbnailURL(a *store.Attachment) string {
	if !strings.HasPrefix(a.ContentType, "image/") {
		return ""
	}
	return s.URL(a)
}

// Prune removes blobs whose attachment row no longer exists, e.g. after the
// owning message was deleted. It returns the number of removed blobs.
func (s *Store) Prune(ctx context.Context) (int, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix)))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan blobs: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		_, err := s.meta.GetAttachmentByKey(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return removed, err
		}
		if err := s.delete(key); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("pruned orphan blobs")
	}
	return removed, nil
}

func (s *Store) delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blobKey(key))
	})
}

func blobKey(key string) []byte {
	return []byte(keyPrefix + key)
}

// badgerLogger routes badger's logs through zerolog.
type badgerLogger struct {
	log *zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}
