package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents a chat room (a "server" in client terminology).
type Room struct {
	ID          int64
	Name        string
	Description string
	OwnerID     int64
	CreatedAt   time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID              int64
	RoomID          int64
	UserID          int64
	Content         string
	ParentMessageID *int64
	Attachments     []*Attachment
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Attachment is the metadata of an uploaded file. Bytes live in the blob store under Key.
type Attachment struct {
	ID          int64
	MessageID   *int64
	Key         string
	Filename    string
	ContentType string
	ByteSize    int64
	CreatedAt   time.Time
}

// Reaction is a single emoji reaction of a user to a message.
// At most one row exists per (message, user, emoji).
type Reaction struct {
	ID        int64
	MessageID int64
	UserID    int64
	Emoji     string
	CreatedAt time.Time
}

// ReadState tracks how far a member has read a room.
type ReadState struct {
	UserID      int64
	RoomID      int64
	LastReadAt  time.Time
	UnreadCount int64
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// RoomStore handles room persistence and answers membership questions.
type RoomStore interface {
	// CreateRoom creates a room owned by ownerID. The owner becomes a member
	// and gets a read state in the same transaction.
	CreateRoom(ctx context.Context, name, description string, ownerID int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// AddMember adds a user to a room and creates the matching read state.
	AddMember(ctx context.Context, userID, roomID int64) error

	// RemoveMember removes a user from a room together with their read state.
	RemoveMember(ctx context.Context, userID, roomID int64) error

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)

	// ListMembers lists all members of a room.
	ListMembers(ctx context.Context, roomID int64) ([]int64, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists msg and claims the given unattached attachments for it.
	CreateMessage(ctx context.Context, msg *Message, attachmentIDs []int64) error

	// GetMessage retrieves a message with its attachments.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// UpdateMessageContent replaces the text of a message.
	UpdateMessageContent(ctx context.Context, id int64, content string, updatedAt time.Time) error

	// DeleteMessage removes a message, its reactions and attachments.
	// Replies keep existing with their parent reference cleared.
	DeleteMessage(ctx context.Context, id int64) error
}

// ReactionStore handles reaction persistence.
type ReactionStore interface {
	// CreateReaction inserts a reaction. Returns ErrDuplicate when the same
	// user already reacted to the message with the same emoji.
	CreateReaction(ctx context.Context, r *Reaction) error

	// GetReaction finds the reaction of userID on messageID with emoji.
	GetReaction(ctx context.Context, messageID, userID int64, emoji string) (*Reaction, error)

	// DeleteReaction removes a reaction by ID.
	DeleteReaction(ctx context.Context, id int64) error
}

// ReadStateStore handles per-(user, room) read tracking.
type ReadStateStore interface {
	// EnsureReadState creates the read state if it does not exist yet.
	EnsureReadState(ctx context.Context, userID, roomID int64) error

	// GetReadState retrieves the read state of a user in a room.
	GetReadState(ctx context.Context, userID, roomID int64) (*ReadState, error)

	// ListReadStates lists every read state of a room.
	ListReadStates(ctx context.Context, roomID int64) ([]*ReadState, error)

	// MarkRead zeroes the unread counter and sets last_read_at.
	MarkRead(ctx context.Context, userID, roomID int64, at time.Time) error

	// TouchLastRead sets last_read_at for the given users without touching counters.
	TouchLastRead(ctx context.Context, roomID int64, userIDs []int64, at time.Time) error

	// IncrementUnread bumps the unread counter of the given users by one.
	IncrementUnread(ctx context.Context, roomID int64, userIDs []int64) error
}

// AttachmentStore handles attachment metadata.
type AttachmentStore interface {
	// CreateAttachment stores metadata of an uploaded, not yet attached file.
	CreateAttachment(ctx context.Context, a *Attachment) error

	// GetAttachments retrieves attachments by IDs. Missing IDs are skipped.
	GetAttachments(ctx context.Context, ids []int64) ([]*Attachment, error)

	// GetAttachmentByKey retrieves an attachment by its blob key.
	GetAttachmentByKey(ctx context.Context, key string) (*Attachment, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	ReactionStore
	ReadStateStore
	AttachmentStore

	// Close closes the underlying database connection.
	Close() error
}
