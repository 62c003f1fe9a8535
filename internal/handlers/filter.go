package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/services"
	"github.com/ruma-go/homeserver/pkg/response"
)

type FilterHandler struct {
	filters *services.FilterService
}

func NewFilterHandler(filters *services.FilterService) *FilterHandler {
	return &FilterHandler{filters: filters}
}

// Create POST /_matrix/client/r0/user/:user_id/filter
func (h *FilterHandler) Create(c *gin.Context) {
	userID, err := ownUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, apperr.NotJSON("Could not read request body."))
		return
	}

	id, err := h.filters.Create(c.Request.Context(), userID, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"filter_id": id})
}

// Get GET /_matrix/client/r0/user/:user_id/filter/:filter_id
func (h *FilterHandler) Get(c *gin.Context) {
	userID, err := ownUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	raw, err := h.filters.Get(c.Request.Context(), userID, c.Param("filter_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
