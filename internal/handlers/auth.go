package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/services"
	"github.com/ruma-go/homeserver/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a local account
// POST /_matrix/client/r0/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.BadJSON(err.Error()))
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Login handles password login
// POST /_matrix/client/r0/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.BadJSON(err.Error()))
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GetLoginFlows lists the supported login types
// GET /_matrix/client/r0/login
func (h *AuthHandler) GetLoginFlows(c *gin.Context) {
	response.Success(c, gin.H{
		"flows": []gin.H{{"type": services.LoginTypePassword}},
	})
}
