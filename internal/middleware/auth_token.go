package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/haierkeys/db-backup-service/pkg/app"
	"github.com/haierkeys/db-backup-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// AuthTokenWithConfig 静态 Bearer Token 认证，authToken 为空时不校验
func AuthTokenWithConfig(authToken string) gin.HandlerFunc {
	return func(c *gin.Context) {

		if authToken == "" {
			c.Next()
			return
		}

		var token string

		if s := c.GetHeader("Authorization"); len(s) != 0 {
			token = s
		} else if s, exist := c.GetQuery("authorization"); exist {
			token = s
		}

		if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
			token = strings.TrimSpace(token[7:])
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(authToken)) != 1 {
			app.NewResponse(c).ToResponse(code.ErrorInvalidAuthToken)
			c.Abort()
			return
		}
		c.Next()
	}
}
