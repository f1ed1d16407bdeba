package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance. The hub drops live
// subscriptions of members who leave.
func NewRoomHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=64"`
	Description string `json:"description" binding:"max=500"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner_id"`
	CreatedAt   string `json:"created_at"`
}

// ReadStateResponse represents the caller's read state in a room.
type ReadStateResponse struct {
	RoomID      int64  `json:"room_id"`
	UnreadCount int64  `json:"unread_count"`
	LastReadAt  string `json:"last_read_at"`
}

func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		OwnerID:     room.OwnerID,
		CreatedAt:   room.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateRoom handles room creation. The caller becomes owner and member.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, req.Description, uid)
	if err != nil {
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_name", room.Name).Int64("room_id", room.ID).Int64("owner_id", uid).Msg("room created successfully")
	c.JSON(http.StatusCreated, roomResponse(room))
}

// JoinRoom adds the caller to a room.
// POST /api/rooms/:id/join
func (h *RoomHandlers) JoinRoom(c *gin.Context) {
	uid, room, ok := h.resolveRoom(c)
	if !ok {
		return
	}

	if err := h.store.AddMember(c.Request.Context(), uid, room.ID); err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Int64("user_id", uid).Msg("failed to join room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("room_id", room.ID).Int64("user_id", uid).Msg("user joined room")
	c.JSON(http.StatusOK, roomResponse(room))
}

// LeaveRoom removes the caller from a room. Owners cannot leave their room.
// POST /api/rooms/:id/leave
func (h *RoomHandlers) LeaveRoom(c *gin.Context) {
	uid, room, ok := h.resolveRoom(c)
	if !ok {
		return
	}
	if room.OwnerID == uid {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "owner cannot leave the room"})
		return
	}

	if err := h.store.RemoveMember(c.Request.Context(), uid, room.ID); err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Int64("user_id", uid).Msg("failed to leave room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if h.hub != nil {
		h.hub.Revoke(uid, room.ID)
	}

	h.log.Info().Int64("room_id", room.ID).Int64("user_id", uid).Msg("user left room")
	c.Status(http.StatusNoContent)
}

// ReadState returns the caller's unread counter for a room.
// GET /api/rooms/:id/read_state
func (h *RoomHandlers) ReadState(c *gin.Context) {
	uid, room, ok := h.resolveRoom(c)
	if !ok {
		return
	}

	rs, err := h.store.GetReadState(c.Request.Context(), uid, room.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room"})
			return
		}
		h.log.Error().Err(err).Int64("room_id", room.ID).Int64("user_id", uid).Msg("failed to load read state")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ReadStateResponse{
		RoomID:      rs.RoomID,
		UnreadCount: rs.UnreadCount,
		LastReadAt:  rs.LastReadAt.UTC().Format(time.RFC3339Nano),
	})
}

// resolveRoom reads the caller and the :id room, writing an error response when either is missing.
func (h *RoomHandlers) resolveRoom(c *gin.Context) (int64, *store.Room, bool) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return 0, nil, false
	}

	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return 0, nil, false
	}

	room, err := h.store.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return 0, nil, false
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, nil, false
	}
	return uid, room, true
}
