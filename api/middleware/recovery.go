package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/tunegrab/pkg/logger"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500. The panic is logged with its
// stack, and also to the error category when ml is not nil.
func Recovery(log *zap.Logger, ml *logger.MultiLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("path", c.Request.URL.Path),
			}
			if id := c.Param("id"); id != "" {
				fields = append(fields, zap.String("id", id))
			}

			log.Error("Handler panicked", append(fields[:len(fields):len(fields)], zap.Stack("stack"))...)
			if ml != nil {
				ml.LogAppError("Handler panicked", fields...)
			}

			// headers already went out; the status can no longer change
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}()
		c.Next()
	}
}
