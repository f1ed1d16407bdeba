package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ActionKind enumerates the actions a subscribed connection may invoke.
type ActionKind int

const (
	ActionMessageCreate ActionKind = iota + 1
	ActionMessageUpdate
	ActionMessageDelete
	ActionReactionCreate
	ActionReactionDelete
)

var actionNames = map[string]ActionKind{
	"message_create":  ActionMessageCreate,
	"message_update":  ActionMessageUpdate,
	"message_delete":  ActionMessageDelete,
	"reaction_create": ActionReactionCreate,
	"reaction_delete": ActionReactionDelete,
}

// ParseAction maps a wire action name to its kind.
func ParseAction(name string) (ActionKind, bool) {
	kind, ok := actionNames[name]
	return kind, ok
}

func (k ActionKind) String() string {
	for name, kind := range actionNames {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// ActionContext is what a handler receives once routing checks passed.
type ActionContext struct {
	Client  *Client
	Room    *store.Room
	Payload json.RawMessage
}

// Handler executes one action kind.
type Handler interface {
	Handle(ctx context.Context, ac *ActionContext) error
}

type roomEnvelope struct {
	RoomID int64 `json:"room_id" validate:"required,gt=0"`
}

var errPayloadFormat = errors.New("payload is not a JSON object")

// Dispatch routes an action from c. Errors are reported to the room or the
// sender; nothing is returned to the caller.
func (h *Hub) Dispatch(ctx context.Context, c *Client, action string, payload json.RawMessage) {
	if !h.registry.Active(c) {
		h.log.Debug().Str("client", c.ID).Str("action", action).Msg("action from closed client ignored")
		return
	}
	if c.Limiter != nil && !c.Limiter.Allow() {
		h.metrics.Action(action, "rejected")
		h.reportError(c, 0, messageError(ErrCodeRateLimited, "too many actions, slow down"))
		return
	}

	subscribed, ok := h.registry.RoomOf(c)
	if !ok {
		h.metrics.Action(action, "rejected")
		h.reportError(c, 0, messageError(ErrCodeNotSubscribed, "subscribe to a room first"))
		return
	}

	roomID, err := h.route(ctx, c, action, payload)
	if err != nil {
		if roomID == 0 {
			roomID = subscribed
		}
		h.metrics.Action(action, "error")
		h.reportError(c, roomID, err)
		return
	}
	h.metrics.Action(action, "ok")
}

// route resolves the action and its room, then runs the handler. The returned
// room is the one errors belong to, zero if it was not resolved.
func (h *Hub) route(ctx context.Context, c *Client, action string, raw json.RawMessage) (int64, error) {
	kind, ok := ParseAction(action)
	if !ok {
		return 0, messageError(ErrCodeUnknownAction, fmt.Sprintf("unknown action %q", action))
	}

	payload, err := normalizePayload(raw)
	if err != nil {
		return 0, messageError(ErrCodeInvalidPayload, "invalid payload format")
	}

	var envelope roomEnvelope
	if err := h.decode(payload, &envelope); err != nil {
		return 0, err
	}

	room, err := h.store.GetRoomByID(ctx, envelope.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, messageError(ErrCodeRoomNotFound, "room not found")
		}
		return 0, err
	}

	member, err := h.store.IsMember(ctx, c.UserID, room.ID)
	if err != nil {
		return room.ID, err
	}
	if !member {
		return room.ID, messageError(ErrCodeNotAuthorized, "user not authorized for this room")
	}

	h.log.Debug().Str("client", c.ID).Str("action", action).Int64("room_id", room.ID).Msg("dispatching action")
	return room.ID, h.handlers[kind].Handle(ctx, &ActionContext{Client: c, Room: room, Payload: payload})
}

// decode unmarshals payload into dst and validates it.
func (h *Hub) decode(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return messageError(ErrCodeInvalidPayload, "invalid payload format")
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return validationError(ErrCodeInvalidPayload, describeFieldErrors(fieldErrs))
		}
		return err
	}
	return nil
}

// normalizePayload accepts either a JSON object or a string holding one.
func normalizePayload(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil, err
		}
		trimmed = bytes.TrimSpace([]byte(encoded))
	}
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, errPayloadFormat
	}
	return trimmed, nil
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "max":
			parts = append(parts, fe.Field()+" is too long")
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
