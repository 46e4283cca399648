package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	internalerrors "github.com/tsamsiyu/k8schema/internal/errors"
)

// ErrorHandler turns a panic in a handler into a 500 response.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic while handling request",
					zap.Any("panic", r),
					zap.String("requestId", GetRequestID(c)),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
		}()
		c.Next()
	}
}

// ErrorMapper maps errors from different layers to appropriate HTTP responses
func ErrorMapper(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			status, body := mapError(err, logger.With(zap.String("requestId", GetRequestID(c))))
			c.JSON(status, body)
		}
	}
}

func mapError(err error, logger *zap.Logger) (int, interface{}) {
	switch e := errors.Cause(err).(type) {
	case *internalerrors.NotFoundError:
		return http.StatusNotFound, gin.H{"error": e.Error()}
	case *internalerrors.MarshalingError:
		logger.Error("Marshaling error", zap.String("message", e.Message))
		return http.StatusInternalServerError, gin.H{
			"error": "Data processing error",
		}
	default:
		logger.Error("Unhandled error", zap.Error(err))
		return http.StatusInternalServerError, gin.H{"error": "Internal server error"}
	}
}
