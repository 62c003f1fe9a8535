package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows browser clients from any origin. Access tokens travel in a
// header, so no credentials are involved.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Accept", "Content-Type", "Authorization", "X-Requested-With"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	})
}

// ServerHeader stamps every response with the server name and version.
func ServerHeader(version string) gin.HandlerFunc {
	value := "ruma/" + version
	return func(c *gin.Context) {
		c.Header("Server", value)
		c.Next()
	}
}
