package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/services"
	"github.com/ruma-go/homeserver/pkg/logger"
	"github.com/ruma-go/homeserver/pkg/response"
)

type ProfileHandler struct {
	profiles *services.ProfileService
	queue    services.TaskQueue
}

func NewProfileHandler(profiles *services.ProfileService, queue services.TaskQueue) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, queue: queue}
}

// GetProfile GET /_matrix/client/r0/profile/:user_id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// GetDisplayname GET /_matrix/client/r0/profile/:user_id/displayname
func (h *ProfileHandler) GetDisplayname(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	body := gin.H{}
	if profile.Displayname != nil {
		body["displayname"] = *profile.Displayname
	}
	response.Success(c, body)
}

// SetDisplayname updates the caller's display name and re-announces it in
// every joined room.
// PUT /_matrix/client/r0/profile/:user_id/displayname
func (h *ProfileHandler) SetDisplayname(c *gin.Context) {
	userID, err := ownUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req services.DisplaynameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.BadJSON(err.Error()))
		return
	}

	if _, err := h.profiles.UpdateDisplayname(c.Request.Context(), userID, req.Displayname); err != nil {
		response.Error(c, err)
		return
	}
	response.Empty(c)
}

// GetAvatarURL GET /_matrix/client/r0/profile/:user_id/avatar_url
func (h *ProfileHandler) GetAvatarURL(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	body := gin.H{}
	if profile.AvatarURL != nil {
		body["avatar_url"] = *profile.AvatarURL
	}
	response.Success(c, body)
}

// SetAvatarURL PUT /_matrix/client/r0/profile/:user_id/avatar_url
func (h *ProfileHandler) SetAvatarURL(c *gin.Context) {
	userID, err := ownUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req services.AvatarURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.BadJSON(err.Error()))
		return
	}

	if _, err := h.profiles.UpdateAvatarURL(c.Request.Context(), userID, req.AvatarURL); err != nil {
		response.Error(c, err)
		return
	}
	response.Empty(c)
}

// Refresh queues a re-announcement of the caller's joins with the current
// profile.
// POST /_ruma/profile/:user_id/refresh
func (h *ProfileHandler) Refresh(c *gin.Context) {
	userID, err := ownUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), &services.RefreshTask{UserID: userID}); err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("failed to enqueue membership refresh")
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"queued": true, "async": h.queue.IsAsync()})
}
