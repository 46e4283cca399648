package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestLogger logs every request with a generated request id. The id is
// echoed in the X-Request-ID response header.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		start := time.Now()

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("requestId", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("clientIp", c.ClientIP()),
			zap.String("userAgent", c.Request.UserAgent()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Int("responseSize", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("Request completed with server error", fields...)
		case status >= 400:
			logger.Warn("Request completed with client error", fields...)
		default:
			logger.Debug("Request completed", fields...)
		}
	}
}

// GetRequestID returns the id RequestLogger assigned, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
