package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// AdminTokenHeader carries the admin shared secret
const AdminTokenHeader = "X-Admin-Token"

// AdminToken guards the admin trigger surface with a shared secret. The
// token may also be sent as a bearer Authorization header. An empty token
// disables the check.
func AdminToken(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(token)

	return func(c *gin.Context) {
		got := c.GetHeader(AdminTokenHeader)
		if got == "" {
			got = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"Missing or invalid admin token",
				c.GetString(RequestIDKey),
			))
			return
		}
		c.Next()
	}
}
