package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/middleware"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/services"
	"github.com/ruma-go/homeserver/internal/utils"
	"github.com/ruma-go/homeserver/pkg/response"
)

type RoomHandler struct {
	rooms *services.RoomService
}

func NewRoomHandler(rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// TargetRequest names the user a membership action applies to.
type TargetRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CreateRoom creates a room with the caller as creator
// POST /_matrix/client/r0/createRoom
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req services.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.BadJSON(err.Error()))
		return
	}

	room, err := h.rooms.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"room_id": room.RoomID})
}

// Join joins the caller to a room
// POST /_matrix/client/r0/rooms/:room_id/join
func (h *RoomHandler) Join(c *gin.Context) {
	roomID := c.Param("room_id")
	userID := middleware.GetUserID(c)
	if _, err := h.rooms.Transition(c.Request.Context(), roomID, userID, userID, models.MembershipJoin); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"room_id": roomID})
}

// Leave POST /_matrix/client/r0/rooms/:room_id/leave
func (h *RoomHandler) Leave(c *gin.Context) {
	h.self(c, models.MembershipLeave)
}

// Knock POST /_matrix/client/r0/rooms/:room_id/knock
func (h *RoomHandler) Knock(c *gin.Context) {
	h.self(c, models.MembershipKnock)
}

// Invite POST /_matrix/client/r0/rooms/:room_id/invite
func (h *RoomHandler) Invite(c *gin.Context) {
	h.other(c, models.MembershipInvite)
}

// Ban POST /_matrix/client/r0/rooms/:room_id/ban
func (h *RoomHandler) Ban(c *gin.Context) {
	h.other(c, models.MembershipBan)
}

// Kick removes another user: a leave sent on their behalf.
// POST /_matrix/client/r0/rooms/:room_id/kick
func (h *RoomHandler) Kick(c *gin.Context) {
	h.other(c, models.MembershipLeave)
}

func (h *RoomHandler) self(c *gin.Context, m models.Membership) {
	userID := middleware.GetUserID(c)
	if _, err := h.rooms.Transition(c.Request.Context(), c.Param("room_id"), userID, userID, m); err != nil {
		response.Error(c, err)
		return
	}
	response.Empty(c)
}

func (h *RoomHandler) other(c *gin.Context, m models.Membership) {
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.BadJSON(err.Error()))
		return
	}
	if _, _, err := utils.SplitUserID(req.UserID); err != nil {
		response.Error(c, apperr.InvalidParam("Invalid user_id."))
		return
	}

	_, err := h.rooms.Transition(c.Request.Context(), c.Param("room_id"), middleware.GetUserID(c), req.UserID, m)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Empty(c)
}

// Members lists membership events of a room
// GET /_matrix/client/r0/rooms/:room_id/members
func (h *RoomHandler) Members(c *gin.Context) {
	resp, err := h.rooms.Members(c.Request.Context(), c.Param("room_id"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// JoinedRooms GET /_matrix/client/r0/joined_rooms
func (h *RoomHandler) JoinedRooms(c *gin.Context) {
	ids, err := h.rooms.JoinedRooms(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"joined_rooms": ids})
}
