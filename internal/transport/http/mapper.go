package http

import (
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func userFromSummary(u core.UserSummary) proto.User {
	return proto.User{ID: u.ID, Username: u.Username}
}

// outboundFromEvent renders a core event as the JSON frame sent to clients.
func outboundFromEvent(event *core.Event) any {
	switch event.Kind {
	case core.EventConfirmSubscription:
		return proto.ConfirmSubscription{
			Type:   proto.OutboundTypeConfirmSubscription,
			RoomID: event.RoomID,
		}
	case core.EventRejectSubscription:
		out := proto.RejectSubscription{
			Type:   proto.OutboundTypeRejectSubscription,
			RoomID: event.RoomID,
		}
		if event.Error != nil {
			out.Reason = event.Error.Message
			out.Code = event.Error.Code
		}
		return out
	case core.EventMessage:
		msg := event.Message
		if msg == nil {
			return errorFrame(event.Timestamp, nil)
		}
		return proto.Message{
			Type:            proto.OutboundTypeMessage,
			ID:              msg.ID,
			Content:         msg.Content,
			UserID:          msg.User.ID,
			RoomID:          msg.RoomID,
			ParentMessageID: msg.ParentMessageID,
			CreatedAt:       formatTime(msg.CreatedAt),
			UpdatedAt:       formatTime(msg.UpdatedAt),
			User:            userFromSummary(msg.User),
			Attachments: lo.Map(msg.Attachments, func(a core.AttachmentView, _ int) proto.Attachment {
				return proto.Attachment{
					ID:           a.ID,
					Filename:     a.Filename,
					ContentType:  a.ContentType,
					ByteSize:     a.ByteSize,
					URL:          a.URL,
					ThumbnailURL: a.ThumbnailURL,
				}
			}),
		}
	case core.EventMessageDeleted:
		return proto.MessageDeleted{
			Type:      proto.OutboundTypeMessageDeleted,
			MessageID: event.MessageID,
		}
	case core.EventReactionCreated:
		out := proto.ReactionCreated{
			Type:      proto.OutboundTypeReactionCreated,
			MessageID: event.MessageID,
			Emoji:     event.Emoji,
		}
		if event.User != nil {
			out.User = userFromSummary(*event.User)
		}
		return out
	case core.EventReactionDeleted:
		return proto.ReactionDeleted{
			Type:      proto.OutboundTypeReactionDeleted,
			MessageID: event.MessageID,
			Emoji:     event.Emoji,
			UserID:    event.UserID,
		}
	case core.EventNewMessage:
		note := event.Notification
		if note == nil {
			return errorFrame(event.Timestamp, nil)
		}
		ts := formatTime(event.Timestamp)
		return proto.NewMessage{
			Type:     proto.OutboundTypeNewMessage,
			ServerID: event.RoomID,
			Data: proto.NewMessageData{
				MessageID: note.MessageID,
				Sender:    userFromSummary(note.Sender),
				Preview:   note.Preview,
				Timestamp: ts,
			},
			Timestamp: ts,
		}
	default:
		return errorFrame(event.Timestamp, event.Error)
	}
}

func errorFrame(ts time.Time, err *core.CoreError) proto.Error {
	if err == nil {
		return proto.Error{Type: proto.OutboundTypeError, Message: "unknown error", Timestamp: formatTime(ts)}
	}
	return proto.Error{
		Type:      proto.OutboundTypeError,
		Message:   err.Message,
		ErrorType: err.Kind.String(),
		Code:      err.Code,
		Timestamp: formatTime(ts),
	}
}
