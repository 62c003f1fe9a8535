package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/middleware"
)

const notOwnUserMessage = "The given user_id does not correspond to the authenticated user"

// ownUser returns the path user when it is the authenticated caller.
func ownUser(c *gin.Context) (string, error) {
	userID := c.Param("user_id")
	if userID != middleware.GetUserID(c) {
		return "", apperr.Forbidden(notOwnUserMessage)
	}
	return userID, nil
}
