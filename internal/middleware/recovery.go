package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/haierkeys/db-backup-service/pkg/app"
	"github.com/haierkeys/db-backup-service/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryWithLogger 捕获 handler panic，记录堆栈并返回 500
func RecoveryWithLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			fields := []zap.Field{
				zap.String("router", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("query", maskedQuery(c)),
				zap.String("ip", c.ClientIP()),
				zap.String("trace-id", GetTraceIDFromGin(c)),
				zap.String("stack", string(debug.Stack())),
			}
			var errorMsg string
			if err, ok := rec.(error); ok {
				errorMsg = err.Error()
				fields = append(fields, zap.Error(err))
			} else {
				errorMsg = fmt.Sprintf("%v", rec)
				fields = append(fields, zap.String("panic_value", errorMsg))
			}
			logger.Error("Recovered from panic", fields...)

			app.NewResponse(c).ToResponse(code.ErrorServerInternal.WithDetails(errorMsg))
			c.Abort()
		}()

		c.Next()
	}
}
