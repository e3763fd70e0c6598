package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		respond func(c *gin.Context)
		status  int
		code    string
	}{
		{
			name: "explicit code",
			respond: func(c *gin.Context) {
				RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			},
			status: http.StatusBadRequest,
			code:   "file_too_large",
		},
		{
			name: "not found",
			respond: func(c *gin.Context) {
				RespondWithNotFound(c, "Document not found")
			},
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name: "unauthorized",
			respond: func(c *gin.Context) {
				RespondWithUnauthorized(c, "X-User-ID header required")
			},
			status: http.StatusUnauthorized,
			code:   "unauthorized",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tc.respond(c)

			if w.Code != tc.status {
				t.Fatalf("status %d, want %d", w.Code, tc.status)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if resp.ErrorCode != tc.code {
				t.Errorf("error_code %q, want %q", resp.ErrorCode, tc.code)
			}
			if resp.Message == "" {
				t.Error("empty message")
			}
		})
	}
}
