package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/services"
	"github.com/ruma-go/homeserver/pkg/response"
)

type PresenceHandler struct {
	presence *services.PresenceService
}

func NewPresenceHandler(presence *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// GetStatus GET /_matrix/client/r0/presence/:user_id/status
func (h *PresenceHandler) GetStatus(c *gin.Context) {
	resp, err := h.presence.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// SetStatus PUT /_matrix/client/r0/presence/:user_id/status
func (h *PresenceHandler) SetStatus(c *gin.Context) {
	userID, err := ownUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req services.SetPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.BadJSON(err.Error()))
		return
	}

	if err := h.presence.Set(c.Request.Context(), userID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Empty(c)
}
