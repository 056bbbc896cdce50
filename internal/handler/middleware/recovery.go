package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kodomo/inventoryhub/pkg/response"
)

func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("route", c.FullPath()),
					zap.Stack("stack"),
				)
				if c.Writer.Written() {
					// SSE streams have already sent headers.
					c.Abort()
					return
				}
				response.InternalError(c, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
