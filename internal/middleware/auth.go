package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/pkg/logger"
	"github.com/ruma-go/homeserver/pkg/response"
)

const ContextUserID = logger.ContextUserID

// TokenVerifier resolves an access token to the user it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// AccessToken requires a valid access token, taken from the Authorization
// header or the access_token query parameter.
func AccessToken(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			response.Abort(c, apperr.MissingToken())
			return
		}

		userID, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", false
		}
		return token, true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// GetUserID returns the authenticated user id, or "" on public routes.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
