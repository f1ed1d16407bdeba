package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
// Type is "subscribe", "unsubscribe" or an action name.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"

	OutboundTypeConfirmSubscription = "confirm_subscription"
	OutboundTypeRejectSubscription  = "reject_subscription"
	OutboundTypeMessage             = "message"
	OutboundTypeMessageDeleted      = "message_deleted"
	OutboundTypeReactionCreated     = "reaction_created"
	OutboundTypeReactionDeleted     = "reaction_deleted"
	OutboundTypeNewMessage          = "new_message"
	OutboundTypeError               = "error"
)

// SubscribeData requests to subscribe to a room.
type SubscribeData struct {
	RoomID int64 `json:"room_id"`
}

// ConfirmSubscription acknowledges a subscribe.
type ConfirmSubscription struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
}

// RejectSubscription explains why a subscribe failed.
type RejectSubscription struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

// User is the author summary embedded in events.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Attachment is an attachment rendered in a message event.
type Attachment struct {
	ID           int64  `json:"id"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	ByteSize     int64  `json:"byte_size"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Message carries a created or edited message.
type Message struct {
	Type            string       `json:"type"`
	ID              int64        `json:"id"`
	Content         string       `json:"content"`
	UserID          int64        `json:"user_id"`
	RoomID          int64        `json:"room_id"`
	ParentMessageID *int64       `json:"parent_message_id"`
	CreatedAt       string       `json:"created_at"`
	UpdatedAt       string       `json:"updated_at"`
	User            User         `json:"user"`
	Attachments     []Attachment `json:"attachments"`
}

// MessageDeleted notifies that a message is gone.
type MessageDeleted struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
}

// ReactionCreated notifies about a new reaction.
type ReactionCreated struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
	User      User   `json:"user"`
}

// ReactionDeleted notifies that a reaction was removed.
type ReactionDeleted struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
	UserID    int64  `json:"user_id"`
}

// NewMessage is the notification sent on a member's personal topic.
// ServerID is the room id; the name is kept for client compatibility.
type NewMessage struct {
	Type      string         `json:"type"`
	ServerID  int64          `json:"server_id"`
	Data      NewMessageData `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// NewMessageData is the body of a NewMessage notification.
type NewMessageData struct {
	MessageID int64  `json:"message_id"`
	Sender    User   `json:"sender"`
	Preview   string `json:"preview"`
	Timestamp string `json:"timestamp"`
}

// Error describes a failed action.
type Error struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
