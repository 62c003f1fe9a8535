package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/pkg/response"
)

var supportedVersions = []string{"r0.2.0"}

// GetVersions returns the client-server API versions this server speaks
// GET /_matrix/client/versions
func GetVersions(c *gin.Context) {
	response.Success(c, gin.H{"versions": supportedVersions})
}
