package middleware

import (
	"context"
	"strings"

	"codeexec/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader   = "X-Trace-Id"
	RequestIDHeader = "X-Request-Id"

	traceIDContextKey   = "trace_id"
	requestIDContextKey = "request_id"
)

// TraceContextMiddleware ensures trace/request id are in context and response headers.
// Incoming ids are kept; missing ones are generated.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := headerOrNewID(c, TraceIDHeader)
		requestID := headerOrNewID(c, RequestIDHeader)

		c.Set(traceIDContextKey, traceID)
		c.Set(requestIDContextKey, requestID)

		ctx := context.WithValue(c.Request.Context(), contextkey.TraceID, traceID)
		ctx = context.WithValue(ctx, contextkey.RequestID, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(TraceIDHeader, traceID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()
	}
}

func headerOrNewID(c *gin.Context, header string) string {
	if id := strings.TrimSpace(c.GetHeader(header)); id != "" {
		return id
	}
	return uuid.NewString()
}
