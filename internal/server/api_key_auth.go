package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenRequired authenticates /api requests against the configured bearer
// token. Without a configured token every request passes.
func (s *Server) TokenRequired() gin.HandlerFunc {
	expected := strings.TrimSpace(s.cfg.HTTPToken)
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}

		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
