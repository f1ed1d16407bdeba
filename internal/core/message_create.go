package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

type messageCreatePayload struct {
	RoomID          int64   `json:"room_id" validate:"required,gt=0"`
	Content         string  `json:"content" validate:"max=4000"`
	AttachmentIDs   []int64 `json:"attachment_ids" validate:"dive,gt=0"`
	ParentMessageID *int64  `json:"parent_message_id" validate:"omitempty,gt=0"`
}

type messageCreateHandler struct {
	hub *Hub
}

func (m *messageCreateHandler) Handle(ctx context.Context, ac *ActionContext) error {
	h := m.hub

	var p messageCreatePayload
	if err := h.decode(ac.Payload, &p); err != nil {
		return err
	}

	ids := lo.Uniq(p.AttachmentIDs)
	if strings.TrimSpace(p.Content) == "" && len(ids) == 0 {
		return validationError(ErrCodeInvalidMessage, "message must have content or attachments")
	}

	attachments, err := h.checkAttachments(ctx, ids)
	if err != nil {
		return err
	}

	if p.ParentMessageID != nil {
		parent, err := h.store.GetMessage(ctx, *p.ParentMessageID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return validationError(ErrCodeInvalidParent, "parent message not found")
			}
			return err
		}
		if parent.RoomID != ac.Room.ID {
			return validationError(ErrCodeInvalidParent, "parent message must belong to the same room")
		}
	}

	now := h.now()
	msg := &store.Message{
		RoomID:          ac.Room.ID,
		UserID:          ac.Client.UserID,
		Content:         p.Content,
		ParentMessageID: p.ParentMessageID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.store.CreateMessage(ctx, msg, lo.Map(attachments, func(a *store.Attachment, _ int) int64 { return a.ID })); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return validationError(ErrCodeInvalidAttachment, "attachment is no longer available")
		}
		return fmt.Errorf("create message: %w", err)
	}

	// The message is committed from here on; later failures are only logged.
	h.registry.Publish(RoomTopic(ac.Room.ID), &Event{
		Kind:      EventMessage,
		RoomID:    ac.Room.ID,
		Message:   h.messageView(msg, ac.Client.summary()),
		Timestamp: now,
	})
	h.notifyMembers(ctx, ac, msg)

	if err := h.tracker.MessageCreated(ctx, ac.Room.ID, ac.Client.UserID); err != nil {
		h.log.Error().Err(err).Int64("room_id", ac.Room.ID).Int64("message_id", msg.ID).Msg("update read states")
	}
	return nil
}

func (h *Hub) checkAttachments(ctx context.Context, ids []int64) ([]*store.Attachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > h.opts.MaxAttachments {
		return nil, validationError(ErrCodeInvalidAttachment, fmt.Sprintf("too many files (maximum is %d)", h.opts.MaxAttachments))
	}
	if h.attachments == nil {
		return nil, validationError(ErrCodeInvalidAttachment, "attachments are not supported")
	}

	attachments, err := h.attachments.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve attachments: %w", err)
	}
	if len(attachments) != len(ids) {
		return nil, validationError(ErrCodeInvalidAttachment, "attachment not found")
	}
	for _, a := range attachments {
		switch {
		case a.MessageID != nil:
			return nil, validationError(ErrCodeInvalidAttachment, a.Filename+" is already attached to a message")
		case a.ByteSize > h.opts.MaxAttachmentBytes:
			return nil, validationError(ErrCodeInvalidAttachment, a.Filename+" file too large")
		case !h.acceptedMedia(a.ContentType):
			return nil, validationError(ErrCodeInvalidAttachment, a.Filename+" must be an image or video file")
		}
	}
	return attachments, nil
}

func (h *Hub) acceptedMedia(contentType string) bool {
	return lo.SomeBy(h.opts.MediaTypes, func(prefix string) bool {
		return strings.HasPrefix(contentType, prefix)
	})
}

// notifyMembers publishes a new_message notification on the personal topic of every room member.
func (h *Hub) notifyMembers(ctx context.Context, ac *ActionContext, msg *store.Message) {
	members, err := h.store.ListMembers(ctx, ac.Room.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", ac.Room.ID).Msg("list members for notification")
		return
	}

	note := &Notification{
		MessageID: msg.ID,
		Sender:    ac.Client.summary(),
		Preview:   Preview(msg.Content, len(msg.Attachments), h.opts.PreviewLength),
	}
	for _, userID := range members {
		h.registry.Publish(NotificationTopic(userID), &Event{
			Kind:         EventNewMessage,
			RoomID:       ac.Room.ID,
			Notification: note,
			Timestamp:    msg.CreatedAt,
		})
	}
}

func (h *Hub) messageView(msg *store.Message, author UserSummary) *MessageView {
	view := &MessageView{
		ID:              msg.ID,
		RoomID:          msg.RoomID,
		Content:         msg.Content,
		ParentMessageID: msg.ParentMessageID,
		CreatedAt:       msg.CreatedAt,
		UpdatedAt:       msg.UpdatedAt,
		User:            author,
	}
	view.Attachments = lo.Map(msg.Attachments, func(a *store.Attachment, _ int) AttachmentView {
		av := AttachmentView{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			ByteSize:    a.ByteSize,
		}
		if h.attachments != nil {
			av.URL = h.attachments.URL(a)
			av.ThumbnailURL = h.attachments.ThumbnailURL(a)
		}
		return av
	})
	return view
}

// Preview returns the notification text of a message: its content cut to at
// most limit characters, "..." included, or an attachment summary when it has
// no text.
func Preview(content string, attachments, limit int) string {
	text := strings.TrimSpace(content)
	if text == "" {
		if attachments == 1 {
			return "Sent 1 attachment"
		}
		return fmt.Sprintf("Sent %d attachments", attachments)
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	const ellipsis = "..."
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}
