package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminKeyHeader = "X-Admin-Key"

// requireAdminKey protects routes that spend from the service wallet. With no
// key configured the routes stay open, for local ledgers.
func (s *Server) requireAdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminAPIKey == "" {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(adminKeyHeader))
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.AdminAPIKey)) != 1 {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
			c.Abort()
			return
		}
		c.Next()
	}
}
