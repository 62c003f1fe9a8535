package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/utils"
	"github.com/ruma-go/homeserver/pkg/response"
)

// RoomIDParam rejects requests whose :room_id is not a room identifier.
func RoomIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, err := utils.SplitRoomID(c.Param("room_id")); err != nil {
			response.Abort(c, apperr.InvalidParam("Invalid room_id."))
			return
		}
		c.Next()
	}
}

// UserIDParam rejects requests whose :user_id is not a user identifier.
func UserIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, err := utils.SplitUserID(c.Param("user_id")); err != nil {
			response.Abort(c, apperr.InvalidParam("Invalid user_id."))
			return
		}
		c.Next()
	}
}
