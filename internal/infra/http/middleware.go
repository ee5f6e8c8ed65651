package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog logs each request once it completes and feeds the HTTP metrics.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.clock()
		c.Next()
		elapsed := s.clock().Sub(start)
		status := c.Writer.Status()
		route := c.FullPath()

		s.metrics.ObserveHTTP(c.Request.Method, route, status, elapsed)
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", c.GetString("request_id"),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			s.log.Error("http request", kv...)
		case status >= 400:
			s.log.Warn("http request", kv...)
		default:
			s.log.Info("http request", kv...)
		}
	}
}
