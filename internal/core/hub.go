package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ErrorScope selects who receives action errors.
type ErrorScope string

const (
	// ErrorScopeRoom publishes action errors on the room topic.
	ErrorScopeRoom ErrorScope = "room"
	// ErrorScopeSender sends action errors to the originating connection only.
	ErrorScopeSender ErrorScope = "sender"
)

// Options tune domain limits of the hub.
type Options struct {
	ErrorScope         ErrorScope
	MaxAttachments     int
	MaxAttachmentBytes int64
	// MediaTypes lists accepted attachment MIME prefixes.
	MediaTypes    []string
	PreviewLength int
}

// DefaultOptions returns the stock limits.
func DefaultOptions() Options {
	return Options{
		ErrorScope:         ErrorScopeRoom,
		MaxAttachments:     10,
		MaxAttachmentBytes: 10 << 20,
		MediaTypes:         []string{"image/", "video/"},
		PreviewLength:      50,
	}
}

// AttachmentResolver looks up uploaded attachments and renders their URLs.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ids []int64) ([]*store.Attachment, error)
	URL(a *store.Attachment) string
	ThumbnailURL(a *store.Attachment) string
}

// Hub wires the connection registry to persistence and routes client actions.
type Hub struct {
	registry    *Registry
	store       store.Store
	attachments AttachmentResolver
	tracker     *ReadTracker
	handlers    map[ActionKind]Handler
	validate    *validator.Validate
	opts        Options
	metrics     *metrics.Metrics
	log         *zerolog.Logger
	now         func() time.Time
}

// NewHub constructs a hub. attachments may be nil, in which case messages
// referencing attachments are rejected.
func NewHub(st store.Store, attachments AttachmentResolver, opts Options, m *metrics.Metrics, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	defaults := DefaultOptions()
	if opts.ErrorScope == "" {
		opts.ErrorScope = defaults.ErrorScope
	}
	if opts.MaxAttachments <= 0 {
		opts.MaxAttachments = defaults.MaxAttachments
	}
	if opts.MaxAttachmentBytes <= 0 {
		opts.MaxAttachmentBytes = defaults.MaxAttachmentBytes
	}
	if len(opts.MediaTypes) == 0 {
		opts.MediaTypes = defaults.MediaTypes
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = defaults.PreviewLength
	}

	h := &Hub{
		registry:    NewRegistry(m, logger),
		store:       st,
		attachments: attachments,
		validate:    newValidator(),
		opts:        opts,
		metrics:     m,
		log:         logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	h.tracker = NewReadTracker(st, h.registry, logger)
	h.tracker.now = func() time.Time { return h.now() }
	h.handlers = map[ActionKind]Handler{
		ActionMessageCreate:  &messageCreateHandler{hub: h},
		ActionMessageUpdate:  &messageUpdateHandler{hub: h},
		ActionMessageDelete:  &messageDeleteHandler{hub: h},
		ActionReactionCreate: &reactionCreateHandler{hub: h},
		ActionReactionDelete: &reactionDeleteHandler{hub: h},
	}
	return h
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run blocks until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("hub started")
	<-ctx.Done()
	closed := h.registry.CloseAll()
	h.log.Info().Int("connections", len(closed)).Msg("hub stopped")
}

// RegisterClient adds a new connection.
func (h *Hub) RegisterClient(c *Client) {
	h.registry.Register(c)
}

// UnregisterClient removes a connection from every topic and room.
func (h *Hub) UnregisterClient(c *Client) {
	h.registry.Unregister(c)
}

// reportError delivers err for an action of c. roomID is the room the error
// belongs to, zero when it could not be resolved.
func (h *Hub) reportError(c *Client, roomID int64, err error) {
	var coreErr *CoreError
	if !errors.As(err, &coreErr) {
		h.log.Error().Err(err).Str("client", c.ID).Int64("room_id", roomID).Msg("action failed")
		coreErr = messageError(ErrCodeInternal, "error processing message")
	}

	ev := &Event{Kind: EventError, RoomID: roomID, Error: coreErr, Timestamp: h.now()}
	if h.opts.ErrorScope == ErrorScopeSender || roomID == 0 || coreErr.senderOnly() {
		h.registry.Send(c, ev)
		return
	}
	h.registry.Publish(RoomTopic(roomID), ev)
	if current, ok := h.registry.RoomOf(c); !ok || current != roomID {
		h.registry.Send(c, ev)
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
