package core

import "fmt"

// ErrorKind groups errors the way clients display them.
type ErrorKind int

const (
	// KindSubscription is raised while joining a room.
	KindSubscription ErrorKind = iota
	// KindMessage is raised while routing or executing an action.
	KindMessage
	// KindValidation is raised when a payload breaks a domain rule.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindSubscription:
		return "subscription_error"
	case KindMessage:
		return "message_error"
	case KindValidation:
		return "validation_error"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound      = "room_not_found"
	ErrCodeNotAuthorized     = "not_authorized"
	ErrCodeNotSubscribed     = "not_subscribed"
	ErrCodeConnectionClosed  = "connection_closed"
	ErrCodeInvalidPayload    = "invalid_payload"
	ErrCodeUnknownAction     = "unknown_action"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInvalidMessage    = "invalid_message"
	ErrCodeInvalidAttachment = "invalid_attachment"
	ErrCodeInvalidParent     = "invalid_parent"
	ErrCodeMessageNotFound   = "message_not_found"
	ErrCodeInvalidEmoji      = "invalid_emoji"
	ErrCodeDuplicateReaction = "duplicate_reaction"
	ErrCodeReactionNotFound  = "reaction_not_found"
	ErrCodeInternal          = "internal"
)

// CoreError wraps a kind, a code and a human-readable message.
type CoreError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// senderOnly reports whether the error concerns the connection itself rather than the room.
func (e *CoreError) senderOnly() bool {
	switch e.Code {
	case ErrCodeNotSubscribed, ErrCodeRateLimited, ErrCodeConnectionClosed:
		return true
	}
	return false
}

func subscriptionError(code, msg string) *CoreError {
	return &CoreError{Kind: KindSubscription, Code: code, Message: msg}
}

func messageError(code, msg string) *CoreError {
	return &CoreError{Kind: KindMessage, Code: code, Message: msg}
}

func validationError(code, msg string) *CoreError {
	return &CoreError{Kind: KindValidation, Code: code, Message: msg}
}
