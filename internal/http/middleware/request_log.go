package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/labtwin-backend/internal/platform/ctxutil"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Probe and scrape routes are
// only logged when they fail.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		if isInfraRoute(route) && status < 500 {
			return
		}
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := append([]any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}, ctxutil.LogFields(c.Request.Context())...)
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func isInfraRoute(route string) bool {
	switch route {
	case "/healthcheck", "/readyz", "/metrics":
		return true
	}
	return false
}
