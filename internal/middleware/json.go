package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/pkg/response"
)

const maxBodyBytes = 1 << 20

// JSONBody validates request bodies on POST and PUT. An empty body is
// replaced by "{}"; anything else must be a JSON object sent as
// application/json.
func JSONBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
			if err != nil {
				response.Abort(c, apperr.NotJSON("Could not read request body."))
				return
			}
			if len(body) > maxBodyBytes {
				response.Abort(c, apperr.NotJSON("Request body is too large."))
				return
			}
		}

		if len(bytes.TrimSpace(body)) == 0 {
			body = []byte("{}")
		} else {
			mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
			if err != nil || mediaType != "application/json" {
				response.Abort(c, apperr.NotJSON("Content-Type must be application/json."))
				return
			}

			var probe map[string]json.RawMessage
			if err := json.Unmarshal(body, &probe); err != nil {
				response.Abort(c, apperr.NotJSON("Content not JSON."))
				return
			}
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Request.ContentLength = int64(len(body))
		c.Next()
	}
}
