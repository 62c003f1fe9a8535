package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newJSONRouter() *gin.Engine {
	router := gin.New()
	router.Use(JSONBody())
	echo := func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(200, string(body))
	}
	router.POST("/echo", echo)
	router.GET("/echo", echo)
	return router
}

func TestJSONBody(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
		wantBody    string
		wantErrcode string
	}{
		{"empty body becomes object", "POST", "", "", 200, "{}", ""},
		{"whitespace body becomes object", "POST", "", "  \n", 200, "{}", ""},
		{"json object", "POST", "application/json", `{"a":1}`, 200, `{"a":1}`, ""},
		{"json with charset", "POST", "application/json; charset=utf-8", `{}`, 200, `{}`, ""},
		{"wrong content type", "POST", "text/plain", `{"a":1}`, 400, "", "M_NOT_JSON"},
		{"missing content type", "POST", "", `{"a":1}`, 400, "", "M_NOT_JSON"},
		{"invalid json", "POST", "application/json", `{"a":`, 400, "", "M_NOT_JSON"},
		{"json array", "POST", "application/json", `[1]`, 400, "", "M_NOT_JSON"},
		{"get is not checked", "GET", "text/plain", "", 200, "", ""},
	}

	router := newJSONRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(tt.method, "/echo", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, expected %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantErrcode != "" {
				if code := errcodeOf(t, w); code != tt.wantErrcode {
					t.Errorf("errcode = %q, expected %q", code, tt.wantErrcode)
				}
				return
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, expected %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}
