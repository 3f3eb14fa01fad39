package middleware

import (
	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/logger"
	"codeexec/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// KeyLimiter decides whether a request for key may proceed.
type KeyLimiter interface {
	Allow(key string) bool
}

// RateLimitMiddleware rejects clients that exceed their request rate.
// onReject may be nil.
func RateLimitMiddleware(l KeyLimiter, onReject func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if l.Allow(ip) {
			c.Next()
			return
		}
		if onReject != nil {
			onReject()
		}
		logger.Warn(c.Request.Context(), "request rate limited", zap.String("client_ip", ip))
		response.AbortWithError(c, appErr.New(appErr.TooManyRequests))
	}
}
