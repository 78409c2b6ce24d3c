package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

// userIDHeader carries the requester identity. An upstream gateway is
// expected to have authenticated it.
const userIDHeader = "X-User-Id"

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			fields = append(fields, zap.Error(lastErr.Err))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// requesterID pulls the caller identity from the request headers. Empty
// means the route requires one and the handler should reject.
func requesterID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(userIDHeader))
}

// allowClaim applies the per-user claim throttle. A limiter failure falls
// open; the issuance ledger is the correctness backstop.
func (s *Server) allowClaim(c *gin.Context, userID string) bool {
	if !s.issueLimiter.Enabled() {
		return true
	}
	allowed, err := s.issueLimiter.AllowUser(c.Request.Context(), userID)
	if err != nil {
		return true
	}
	if !allowed {
		AbortWithError(c, ErrRateLimited)
		return false
	}
	return true
}
