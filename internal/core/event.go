package core

import (
	"fmt"
	"time"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventConfirmSubscription acknowledges a successful subscribe to the subscriber only.
	EventConfirmSubscription EventKind = iota
	// EventRejectSubscription tells the subscriber why a subscribe failed.
	EventRejectSubscription
	// EventMessage carries a created or edited message to the room.
	EventMessage
	// EventMessageDeleted notifies the room that a message was removed.
	EventMessageDeleted
	// EventReactionCreated notifies the room about a new reaction.
	EventReactionCreated
	// EventReactionDeleted notifies the room that a reaction was removed.
	EventReactionDeleted
	// EventNewMessage is the per-user notification sent for every new room message.
	EventNewMessage
	// EventError reports a failed action.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConfirmSubscription:
		return "confirm_subscription"
	case EventRejectSubscription:
		return "reject_subscription"
	case EventMessage:
		return "message"
	case EventMessageDeleted:
		return "message_deleted"
	case EventReactionCreated:
		return "reaction_created"
	case EventReactionDeleted:
		return "reaction_deleted"
	case EventNewMessage:
		return "new_message"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event_kind(%d)", int(k))
	}
}

// Event is sent to clients to describe what happened in the system.
// Which fields are set depends on Kind.
type Event struct {
	Kind         EventKind
	RoomID       int64
	Message      *MessageView
	MessageID    int64
	Emoji        string
	User         *UserSummary
	UserID       int64
	Notification *Notification
	Error        *CoreError
	Timestamp    time.Time
}

// UserSummary identifies the author of a message or reaction.
type UserSummary struct {
	ID       int64
	Username string
}

// AttachmentView is an attachment as rendered to clients.
type AttachmentView struct {
	ID           int64
	Filename     string
	ContentType  string
	ByteSize     int64
	URL          string
	ThumbnailURL string
}

// MessageView is a message as rendered to clients.
type MessageView struct {
	ID              int64
	RoomID          int64
	Content         string
	ParentMessageID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	User            UserSummary
	Attachments     []AttachmentView
}

// Notification summarizes a new message for a member's personal topic.
type Notification struct {
	MessageID int64
	Sender    UserSummary
	Preview   string
}
